/*
Package ports defines the driven ports (interfaces) of the LiteForge pipeline.

These interfaces decouple the rewrite and build logic from the processes and
coordination backends it relies on.

# Key Interfaces

  - ToolRunner: Runs the external toolchain (keytool, Metro, Gradle) and streams its output.
  - DistributedLocker: Provides distributed locking so only one build touches a project at a time.
*/
package ports
