package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

var (
	resultChan        chan *ResultEnvelope
	writerOnce        sync.Once
	writerWG          sync.WaitGroup
	resultPath        string
	fallbackWriteOnce sync.Once
)

// InitResultWriter sets up an async JSONL writer (single goroutine) with a
// buffered channel.
func InitResultWriter(path string) {
	resultPath = path
	writerOnce.Do(func() {
		fmt.Printf("[writer] results file (append): %s\n", resultPath)
		resultChan = make(chan *ResultEnvelope, 128)
		writerWG.Add(1)
		go func() {
			defer writerWG.Done()
			f, err := os.OpenFile(resultPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				fmt.Println("open results file:", err)
				return
			}
			defer f.Close()
			enc := json.NewEncoder(f)
			for r := range resultChan {
				if r == nil {
					continue
				}
				if err := enc.Encode(r); err != nil {
					fmt.Println("encode result:", err)
				}
			}
		}()
	})
}

// CloseResultWriter flushes and closes the async writer.
func CloseResultWriter() {
	if resultChan != nil {
		close(resultChan)
		writerWG.Wait()
	}
}

// writeResult enqueues an envelope, or appends synchronously when the async
// writer was never initialized (one-off measurements, tests).
func writeResult(env *ResultEnvelope) {
	if resultChan != nil {
		resultChan <- env
		return
	}
	path := resultPath
	if path == "" {
		path = DefaultResultsFile
	}
	fallbackWriteOnce.Do(func() { fmt.Printf("[writer fallback] results file (append): %s\n", path) })
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("write result:", err)
		return
	}
	defer f.Close()
	b, _ := json.Marshal(env)
	f.WriteString(string(b) + "\n")
}
