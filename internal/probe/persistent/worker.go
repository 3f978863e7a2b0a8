package persistent

import (
	"DelayBench/internal/config"
	"DelayBench/internal/model"
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is a record received from a pod.
type Entry struct {
	PodID  string
	Record model.PacketRecord
}

// Worker archives the records received in subscriber mode to a file.
type Worker struct {
	entryChan chan Entry
	done      chan struct{}

	mu      sync.RWMutex // guards closed against Enqueue
	closed  bool
	dropped atomic.Uint64
}

// NewWorker creates the archive file and starts the writer goroutine.
func NewWorker(cfg config.ArchiveConfig) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	var write func(io.Writer, <-chan Entry) error
	switch cfg.Encoding {
	case "gob":
		write = writeGob
	case "text":
		write = writeText
	default:
		return nil, fmt.Errorf("unknown archive encoding '%s'", cfg.Encoding)
	}

	file, err := createOutputFile(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	w := &Worker{
		entryChan: make(chan Entry, bufferSize),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		if err := write(file, w.entryChan); err != nil {
			log.Printf("ArchiveWorker (%s): %v", cfg.Encoding, err)
		}
		if err := file.Close(); err != nil {
			log.Printf("ArchiveWorker: Error closing file: %v", err)
		}
		log.Println("Archive worker stopped and file closed.")
	}()

	log.Printf("Archive worker started, encoding: %s, writing to: %s", cfg.Encoding, file.Name())
	return w, nil
}

func createOutputFile(cfg config.ArchiveConfig) (*os.File, error) {
	ext := ".log"
	if cfg.Encoding == "gob" {
		ext = ".gob"
	}
	fileName := fmt.Sprintf("records_%s%s", time.Now().Format("2006-01-02_15-04-05.000"), ext)
	return os.OpenFile(filepath.Join(cfg.Path, fileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
}

func writeGob(file io.Writer, entries <-chan Entry) error {
	writer := bufio.NewWriter(file)
	encoder := gob.NewEncoder(writer)
	for entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
	}
	return writer.Flush()
}

func writeText(file io.Writer, entries <-chan Entry) error {
	writer := bufio.NewWriter(file)
	for entry := range entries {
		r := entry.Record
		line := fmt.Sprintf("%s %s:%d -> :%d pkt_id=%d ingress=%d egress=%d delta=%d\n",
			entry.PodID, r.SourceIP, r.SourcePort, r.DestinationPort,
			r.PacketID, r.IngressTS, r.EgressTS, r.Delta)
		if _, err := writer.WriteString(line); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	return writer.Flush()
}

// Enqueue hands an entry to the writer. It never blocks; entries that do not
// fit in the channel are dropped and counted. Entries enqueued after Stop are
// ignored.
func (w *Worker) Enqueue(entry Entry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.entryChan <- entry:
	default:
		n := w.dropped.Add(1)
		if n == 1 || n%1000 == 0 {
			log.Printf("ArchiveWorker: Channel is full, %d records dropped.", n)
		}
	}
}

// Stop closes the channel and waits until every queued entry is written.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.entryChan)
	}
	w.mu.Unlock()
	<-w.done
}

// Dropped returns the number of entries lost to a full channel.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}
