// launchprobe is the built-in application under test: a minimal Fyne window
// that, in benchmark mode, prints a readiness marker and exits on its own so
// a harness can time the interval from spawn to marker.
//
// BENCHMARK=1 enables benchmark mode; any other value (or unset) leaves the
// window open until the user closes it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/widget"

	"github.com/iafilius/AppStartupBench/src/bench"
)

// probeConfig is resolved once in main, before the GUI exists. Nothing
// re-reads the environment after that point.
type probeConfig struct {
	benchmark bool
	delay     time.Duration
	readyLine string
}

// parseBenchmark reports benchmark mode: the variable must equal "1" exactly.
func parseBenchmark(val string, ok bool) bool {
	return ok && val == "1"
}

// scheduleExit starts the benchmark timer: sleep long enough for the event
// loop to tick once and show the window, print the readiness marker exactly
// once, then request exit through the quit capability. quit must be callable
// from any goroutine.
func scheduleExit(cfg probeConfig, out io.Writer, quit func()) {
	go func() {
		time.Sleep(cfg.delay)
		fmt.Fprintln(out, cfg.readyLine)
		quit()
	}()
}

// runProbe runs the event loop until the window closes. Fyne surfaces startup
// failures (no display, driver init) as panics; they are converted into an
// error here so the process can exit non-zero with a message instead of a
// bare stack trace.
func runProbe(w fyne.Window) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	w.ShowAndRun()
	return nil
}

func main() {
	delay := flag.Duration("delay", 50*time.Millisecond, "benchmark mode: pause before printing the ready line, long enough for one event loop tick")
	flag.Parse()

	val, ok := os.LookupEnv(bench.BenchmarkEnv)
	cfg := probeConfig{
		benchmark: parseBenchmark(val, ok),
		delay:     *delay,
		readyLine: bench.DefaultReadyLine,
	}

	a := app.New()
	w := a.NewWindow("Launch Probe")
	w.SetContent(widget.NewLabel("AppStartupBench probe window"))

	var once sync.Once
	a.Lifecycle().SetOnStarted(func() {
		once.Do(func() {
			if !cfg.benchmark {
				return
			}
			quit := func() { fyne.Do(a.Quit) }
			scheduleExit(cfg, os.Stdout, quit)
		})
	})

	if err := runProbe(w); err != nil {
		fmt.Fprintf(os.Stderr, "launchprobe: failed to run GUI application: %v\n", err)
		os.Exit(1)
	}
}
