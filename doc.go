/*
Package liteforge turns a React Native WebView template into a branded Android app.

A build takes three inputs (the website URL, the display name and the package
identifier), rewrites the template project in place and runs the native
toolchain against it. Output is relayed as a stream of events so the same
pipeline can back a terminal, an HTTP client or an MCP agent.

# Pipeline

  - Rewrite: idempotent text and JSON transforms over the template (base URL, app
    descriptor, string resource, Gradle identifiers, service-account descriptor,
    Kotlin package tree, navigation rules).
  - Orchestrate: provision the debug keystore, reset the bundler cache, run the
    release build under a timeout, locate the produced APK.
  - Relay: every output chunk becomes an event; exactly one terminal event
    (success or error) closes the stream.

Only one pipeline may touch a project at a time. Forge serializes access with a
per-project lock and can share that lock across processes through Redis.

# Usage

	forge, err := liteforge.New("./lite-service")
	if err != nil {
		log.Fatal(err)
	}

	req, err := domain.NewBuildRequest("shop.example.com", "My Shop", "com.example.shop")
	if err != nil {
		log.Fatal(err)
	}

	events, err := forge.Build(ctx, req)
	if err != nil {
		log.Fatal(err)
	}
	result := liteforge.Wait(events, func(e domain.Event) {
		fmt.Print(e.Data)
	})
	fmt.Println(result.Type, result.APKPath)
*/
package liteforge
