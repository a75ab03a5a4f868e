/*
Package domain contains the core models of the LiteForge build pipeline.

It defines the transient entities that flow through a white-label build: the
validated BuildRequest, the Identity derived from it, the stream of output
events produced while the toolchain runs and the terminal BuildOutcome. This
package is kept pure and free of I/O so that adapters (CLI, HTTP, MCP) can
share the same vocabulary.

# Key Entities

  - BuildRequest: the immutable input of one invocation (url, app name, package name).
  - Identity: values derived from a request (registered name, normalized URL, escaped URL pattern).
  - Event: one discrete progress, output or terminal message.
  - BuildOutcome: the terminal result of running the native toolchain.
*/
package domain
