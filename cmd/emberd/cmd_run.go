package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/embervm/ember/pkg/api"
	"github.com/embervm/ember/pkg/httpapi"
	"github.com/embervm/ember/pkg/logging"
	"github.com/embervm/ember/pkg/notify"
	"github.com/embervm/ember/pkg/queue"
	"github.com/embervm/ember/pkg/state"
	"github.com/embervm/ember/pkg/version"
	"github.com/embervm/ember/pkg/vm"
	"github.com/embervm/ember/pkg/vmm"
)

const shutdownGracePeriod = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the VMM daemon",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("id", "", "Instance ID (generated when empty)")
	runCmd.Flags().String("api-socket", "", "Control socket path (defaults under the state dir)")
	runCmd.Flags().String("hypervisor", "cloud-hypervisor", "Hypervisor binary launched per guest")
	runCmd.Flags().String("vm-log-dir", "", "Directory for per-guest hypervisor logs")
	runCmd.Flags().String("event-log", "", "JSONL event log file (stderr when empty)")
	viper.BindPFlag("run.id", runCmd.Flags().Lookup("id"))
	viper.BindPFlag("run.api-socket", runCmd.Flags().Lookup("api-socket"))
	viper.BindPFlag("run.hypervisor", runCmd.Flags().Lookup("hypervisor"))
	viper.BindPFlag("run.vm-log-dir", runCmd.Flags().Lookup("vm-log-dir"))
	viper.BindPFlag("run.event-log", runCmd.Flags().Lookup("event-log"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	id := viper.GetString("run.id")
	if id == "" {
		id = uuid.NewString()[:8]
	}

	socketPath := viper.GetString("run.api-socket")
	if socketPath == "" {
		socketPath = filepath.Join(stateDir(), id+".sock")
	}

	emitter, err := buildEmitter(id)
	if err != nil {
		return err
	}
	defer emitter.Close()

	notifier, err := notify.New()
	if err != nil {
		return err
	}
	defer notifier.Close()

	requests := queue.New[api.Request]()
	client := api.NewClient(notifier, requests)

	backend := vm.NewProcessBackend(
		viper.GetString("run.hypervisor"),
		viper.GetString("run.vm-log-dir"),
	)

	dispatcher := vmm.New(notifier, requests, vmm.Options{
		Version: version.Version,
		Backend: backend,
		Emitter: emitter,
	})

	registry, err := state.OpenRegistry(filepath.Join(stateDir(), "registry.db"))
	if err != nil {
		return err
	}
	defer registry.Close()

	if err := registry.Save(&state.Instance{
		ID:         id,
		SocketPath: socketPath,
		PID:        os.Getpid(),
	}); err != nil {
		return err
	}
	defer func() {
		_ = registry.Delete(id)
	}()

	ln, err := httpapi.ListenUnix(socketPath)
	if err != nil {
		return err
	}
	defer os.Remove(socketPath)

	server := httpapi.NewServer(client, emitter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vmmErr := make(chan error, 1)
	go func() {
		// The dispatcher terminates through a vmm.shutdown command, not
		// through this context.
		vmmErr <- dispatcher.Run(context.Background())
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		// Signal received: drive the same shutdown path an API caller
		// would use, then wait for the dispatcher to wind down.
		if err := client.VmmShutdown(); err != nil {
			return err
		}
		<-vmmErr
	case err := <-vmmErr:
		if err != nil {
			return err
		}
	case err := <-serveErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildEmitter picks the sink set: human-readable lines on an interactive
// stderr, JSONL otherwise, plus an optional JSONL file.
func buildEmitter(id string) (*logging.Emitter, error) {
	var sinks []logging.Sink

	if term.IsTerminal(int(os.Stderr.Fd())) {
		sinks = append(sinks, logging.NewTextWriter(os.Stderr))
	} else {
		sinks = append(sinks, logging.NewJSONLStream(os.Stderr))
	}

	if path := viper.GetString("run.event-log"); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		fileSink, err := logging.NewJSONLWriter(path)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}

	return logging.NewEmitter(logging.EmitterConfig{
		VmmID:   id,
		Version: version.Version,
	}, sinks...), nil
}
