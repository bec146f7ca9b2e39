package main

import "runtime/pprof"
import "os"
import "os/signal"
import "syscall"

func init() {
	for _, arg := range os.Args {
		if arg == "-pgo" || arg == "--pgo" {
			// Create a channel to receive OS signals
			sigChan := make(chan os.Signal, 1)

			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				// collect profile data into default.pgo until interrupted
				f, _ := os.Create("default.pgo")
				pprof.StartCPUProfile(f)
				<-sigChan
				pprof.StopCPUProfile()
				f.Close()

				os.Exit(130)
			}()

			return
		}
	}
}
