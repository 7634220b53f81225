package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/saworbit/stablechunk/internal/metrics"
	"github.com/saworbit/stablechunk/internal/platform"
	"github.com/saworbit/stablechunk/pkg/chunk"
	"github.com/saworbit/stablechunk/pkg/config"
	"github.com/saworbit/stablechunk/pkg/merkle"
)

var debugEnabled bool

func logDebug(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	log.Printf("[Debug] "+format, args...)
}

func loadChunkingConfig(cmd *cobra.Command, minBytes, maxBytes, overlapBytes int, softThreshold float64) (config.ChunkingConfig, error) {
	cfg := config.LoadChunkingConfigFromEnv()

	if cmd.Flags().Changed("min-bytes") {
		cfg.MinBytes = minBytes
	}
	if cmd.Flags().Changed("max-bytes") {
		cfg.MaxBytes = maxBytes
	}
	if cmd.Flags().Changed("overlap-bytes") {
		cfg.OverlapBytes = overlapBytes
	}
	if cmd.Flags().Changed("soft-trigger-threshold") {
		cfg.SoftTriggerThreshold = softThreshold
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid chunking configuration: %w", err)
	}
	return cfg, nil
}

func writeManifest(path string, manifest chunk.ChunkManifest) error {
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, encoded, 0o644)
}

func newOfflineCmd() *cobra.Command {
	var (
		minBytes, maxBytes, overlapBytes int
		softThreshold                    float64
		manifestOut                      string
		docID                            string
	)

	cmd := &cobra.Command{
		Use:   "offline <file>",
		Short: "Chunk a whole file in a single scan and emit a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadChunkingConfig(cmd, minBytes, maxBytes, overlapBytes, softThreshold)
			if err != nil {
				return err
			}

			path := platform.LongPathname(args[0])
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			chunks, err := chunk.ChunkOffline(data, cfg)
			if err != nil {
				return fmt.Errorf("chunk offline: %w", err)
			}
			for range chunks {
				metrics.ObserveChunkEmitted("offline")
			}
			log.Printf("[Offline] %s -> %d chunks", path, len(chunks))

			if docID == "" {
				docID = filepath.Base(path)
			}

			manifest, err := chunk.GenerateManifest(docID, data, chunks, cfg, config.DefaultHybridConfig())
			if err != nil {
				return fmt.Errorf("generate manifest: %w", err)
			}

			if root, err := merkle.ComputeManifestMerkleRoot(manifest); err == nil {
				manifest.MerkleRoot = root
			} else {
				logDebug("skipping merkle root: %v", err)
			}

			if manifestOut == "" {
				manifestOut = path + ".manifest.json"
			}
			if err := writeManifest(manifestOut, manifest); err != nil {
				return err
			}
			log.Printf("[Offline] manifest written to %s", manifestOut)
			return nil
		},
	}

	cmd.Flags().IntVar(&minBytes, "min-bytes", 0, "Minimum chunk size in bytes")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 0, "Maximum chunk size in bytes")
	cmd.Flags().IntVar(&overlapBytes, "overlap-bytes", 0, "Overlap between consecutive chunks, in bytes")
	cmd.Flags().Float64Var(&softThreshold, "soft-trigger-threshold", 0, "Cut-score threshold for the soft trigger")
	cmd.Flags().StringVar(&manifestOut, "manifest-out", "", "Path to write the chunk manifest (default: <file>.manifest.json)")
	cmd.Flags().StringVar(&docID, "doc-id", "", "Document ID stamped into the manifest (default: file basename)")

	return cmd
}

func newStreamCmd() *cobra.Command {
	var (
		minBytes, maxBytes, overlapBytes int
		softThreshold                    float64
		feedSize                         int
	)

	cmd := &cobra.Command{
		Use:   "stream <file>",
		Short: "Chunk a file incrementally, as if it arrived over a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadChunkingConfig(cmd, minBytes, maxBytes, overlapBytes, softThreshold)
			if err != nil {
				return err
			}

			path := platform.LongPathname(args[0])
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			sc, err := chunk.NewStreamingChunker(cfg)
			if err != nil {
				return fmt.Errorf("new streaming chunker: %w", err)
			}

			if feedSize <= 0 {
				feedSize = 4096
			}
			buf := make([]byte, feedSize)
			reader := bufio.NewReader(f)

			var total int
			for {
				n, readErr := reader.Read(buf)
				if n > 0 {
					start := time.Now()
					chunks, feedErr := sc.Feed(buf[:n])
					if feedErr != nil {
						return fmt.Errorf("feed: %w", feedErr)
					}
					metrics.ObserveSignalExtraction(float64(time.Since(start).Nanoseconds()) / float64(n))
					for _, c := range chunks {
						metrics.ObserveChunkEmitted("streaming")
						metrics.ObserveBoundaryTrigger(triggerKind(c, cfg))
					}
					total += len(chunks)
				}
				if readErr != nil {
					break
				}
			}

			final, err := sc.Finalize()
			if err != nil {
				return fmt.Errorf("finalize: %w", err)
			}
			for range final {
				metrics.ObserveChunkEmitted("streaming")
				metrics.ObserveBoundaryTrigger("final")
			}
			total += len(final)

			metrics.SetCandidateRingSize(0)
			log.Printf("[Stream] %s -> %d chunks", path, total)
			return nil
		},
	}

	cmd.Flags().IntVar(&minBytes, "min-bytes", 0, "Minimum chunk size in bytes")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 0, "Maximum chunk size in bytes")
	cmd.Flags().IntVar(&overlapBytes, "overlap-bytes", 0, "Overlap between consecutive chunks, in bytes")
	cmd.Flags().Float64Var(&softThreshold, "soft-trigger-threshold", 0, "Cut-score threshold for the soft trigger")
	cmd.Flags().IntVar(&feedSize, "feed-size", 4096, "Bytes fed to the chunker per Feed() call")

	return cmd
}

func newManifestCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and validate chunk manifests",
	}

	var chunksDir string

	validate := &cobra.Command{
		Use:   "validate <manifest.json>",
		Short: "Validate a manifest's structural integrity and, if a chunk directory is given, its content hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}

			var manifest chunk.ChunkManifest
			if err := json.Unmarshal(raw, &manifest); err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}

			ok, problems := chunk.ValidateManifest(manifest)
			if !ok {
				for _, p := range problems {
					fmt.Fprintln(os.Stderr, "structural:", p)
				}
				return fmt.Errorf("manifest failed structural validation (%d problems)", len(problems))
			}
			log.Printf("[Manifest] %s: structurally valid (%d chunks)", args[0], manifest.ChunkCount)

			if manifest.MerkleRoot != "" {
				valid, err := merkle.VerifyManifestMerkleRoot(manifest)
				if err != nil {
					return fmt.Errorf("verify merkle root: %w", err)
				}
				if !valid {
					return fmt.Errorf("merkle root mismatch")
				}
				log.Printf("[Manifest] merkle root verified")
			}

			if chunksDir == "" {
				return nil
			}

			chunks := make([]chunk.Chunk, len(manifest.Chunks))
			for i, cm := range manifest.Chunks {
				content, err := os.ReadFile(filepath.Join(chunksDir, fmt.Sprintf("%d.bin", cm.Index)))
				if err != nil {
					return fmt.Errorf("read chunk %d: %w", cm.Index, err)
				}
				chunks[i] = chunk.Chunk{
					Index:     cm.Index,
					ByteStart: cm.ByteStart,
					ByteEnd:   cm.ByteEnd,
					Content:   content,
				}
			}

			ok, problems = chunk.VerifyChunkIntegrity(manifest, chunks)
			if !ok {
				for _, p := range problems {
					fmt.Fprintln(os.Stderr, "integrity:", p)
				}
				return fmt.Errorf("manifest failed chunk integrity verification (%d problems)", len(problems))
			}
			log.Printf("[Manifest] chunk content integrity verified")
			return nil
		},
	}
	validate.Flags().StringVar(&chunksDir, "chunks-dir", "", "Directory containing <index>.bin chunk content, for full integrity verification")

	root.AddCommand(validate)
	return root
}

func newWatchCmd() *cobra.Command {
	var (
		metricsAddr   string
		guardBand     int
		microSize     int
		microOverlap  int
		editWindowTag string
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Watch a file and hybrid re-chunk around each write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := platform.LongPathname(args[0])

			cfg := config.DefaultChunkingConfig()
			hybridCfg := config.DefaultHybridConfig()
			if cmd.Flags().Changed("guard-band-bytes") {
				hybridCfg.GuardBandBytes = guardBand
			}
			if cmd.Flags().Changed("micro-chunk-bytes") {
				hybridCfg.MicroChunkBytes = microSize
			}
			if cmd.Flags().Changed("micro-overlap-bytes") {
				hybridCfg.MicroOverlapBytes = microOverlap
			}
			if err := hybridCfg.Validate(); err != nil {
				return fmt.Errorf("invalid hybrid configuration: %w", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			prior, err := chunk.ChunkOffline(data, cfg)
			if err != nil {
				return fmt.Errorf("initial chunk pass: %w", err)
			}
			priorTotal := uint64(len(data))

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create fsnotify watcher: %w", err)
			}
			defer watcher.Close()
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
			}

			metrics.SetUp(true)
			defer metrics.SetUp(false)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, metricsAddr, log.Default()); err != nil {
						log.Printf("[Metrics] server stopped: %v", err)
					}
				}()
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			log.Printf("[Watch] watching %s for edits", path)
			for {
				select {
				case <-sigCh:
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != filepath.Clean(path) || event.Op&fsnotify.Write == 0 {
						continue
					}

					newData, err := os.ReadFile(path)
					if err != nil {
						log.Printf("[Watch] read failed: %v", err)
						continue
					}

					editStart, editEnd := 0, int(priorTotal)
					windowID := fmt.Sprintf("%s-%d", editWindowTag, time.Now().UnixNano())

					result, err := chunk.HybridRechunk(prior, priorTotal, newData, editStart, editEnd, hybridCfg, windowID)
					if err != nil {
						log.Printf("[Watch] hybrid rechunk failed: %v", err)
						continue
					}

					metrics.SetHybridGuardBandBytes(hybridCfg.GuardBandBytes)
					for _, hc := range result {
						if hc.Replayed {
							metrics.ObserveChunkEmitted("hybrid_replay")
						} else {
							metrics.ObserveChunkEmitted("hybrid_micro")
						}
					}
					log.Printf("[Watch] %s changed -> %d chunks (%d replayed)", path, len(result), countReplayed(result))

					prior = make([]chunk.Chunk, len(result))
					for i, hc := range result {
						prior[i] = hc.Chunk
					}
					priorTotal = uint64(len(newData))

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Printf("[Watch] watcher error: %v", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (disabled if empty)")
	cmd.Flags().IntVar(&guardBand, "guard-band-bytes", 0, "Bytes of context kept on each side of an edit before re-chunking")
	cmd.Flags().IntVar(&microSize, "micro-chunk-bytes", 0, "Size of fixed micro-chunks emitted across the edit window")
	cmd.Flags().IntVar(&microOverlap, "micro-overlap-bytes", 0, "Overlap between consecutive micro-chunks")
	cmd.Flags().StringVar(&editWindowTag, "edit-window-tag", "watch", "Prefix used when tagging each edit window's ID")

	return cmd
}

// triggerKind classifies a chunk emitted mid-stream from its length alone:
// "hard" when it reaches MaxBytes, "soft" otherwise. A hard-trigger commit
// that chooseHardCommit places at an earlier best candidate is shorter than
// MaxBytes and is therefore counted as "soft".
func triggerKind(c chunk.Chunk, cfg config.ChunkingConfig) string {
	if int(c.ByteEnd-c.ByteStart) >= cfg.MaxBytes {
		return "hard"
	}
	return "soft"
}

func countReplayed(chunks []chunk.HybridChunk) int {
	n := 0
	for _, c := range chunks {
		if c.Replayed {
			n++
		}
	}
	return n
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "stablechunk",
		Short: "stablechunk computes stability-driven chunk boundaries over byte streams",
		Long: `stablechunk chunks byte streams using a signal-based, cut-score-maximizing
boundary selector rather than a rolling-hash content-defined chunker.

Example:
  stablechunk offline document.txt
  stablechunk stream document.txt
  stablechunk manifest validate document.txt.manifest.json
  stablechunk watch document.txt --metrics-addr=:9090`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugEnabled {
				log.Println("[Debug] verbose logging enabled")
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debugEnabled, "debug", false, "Enable verbose debug logging")

	rootCmd.AddCommand(newOfflineCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newManifestCmd())
	rootCmd.AddCommand(newWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
