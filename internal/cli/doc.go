// Parses flags and runs rbuild passes.
//
// The root command takes one or more compose definition files and processes
// them strictly in order:
//
//	rbuild [flags] FILE...
//
//	    --build-period SECONDS       image TTL (env BUILD_TTL, default 86400)
//	    --up-timeout-period SECONDS  health wait (env UP_TIMEOUT_PERIOD, default 60)
//	    --command-timeout SECONDS    bound for runtime calls (env RBUILD_COMMAND_TIMEOUT)
//	    --force-rebuild              rebuild regardless of staleness
//	    --remove-images              remove every image built for the groups
//	    --prune-build-cache          drop the builder cache afterwards
//	-q, --quiet                      only log warnings and errors
//	-v, --verbose                    log debug output
//
// --force-rebuild and --remove-images cannot be combined. Subcommands report
// status without changing anything, serve an HTTP control API, and print the
// version.
package cli
