package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	rtkernel "github.com/vrcore/rtkernel"
	"github.com/vrcore/rtkernel/internal/logging"
)

func main() {
	var (
		verbose    = flag.Bool("v", false, "Verbose output")
		tickPeriod = flag.Duration("tick", 10*time.Millisecond, "Scheduler tick period")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	metrics := rtkernel.NewMetrics()

	cfg := rtkernel.DefaultConfig()
	cfg.TickPeriod = *tickPeriod
	cfg.Logger = logger
	cfg.Observer = metrics

	fs := rtkernel.NewMockFileSystem()
	k := rtkernel.NewKernel(cfg, fs)

	logger.Info("booting kernel", "tick", tickPeriod.String())

	// Two priority tasks: T1 (priority 10) prints A, T2 (priority 20,
	// higher) prints B. The higher-priority task runs first.
	k.Create("T1", func(ctx *rtkernel.TaskContext, arg any) int {
		fmt.Println("A")
		return 0
	}, 10, 0, nil)
	k.Create("T2", func(ctx *rtkernel.TaskContext, arg any) int {
		fmt.Println("B")
		return 0
	}, 20, 0, nil)

	// A priority-inheritance demonstration: a low-priority task holds a
	// mutex a high-priority task then blocks on, boosting the holder so
	// it finishes and releases promptly instead of being starved by
	// anything running in between at a priority below the waiter's.
	m := k.CreateMutex("demo-mutex")
	lowDone := make(chan struct{})
	k.Create("low", func(ctx *rtkernel.TaskContext, arg any) int {
		if _, err := ctx.WaitOne(m, rtkernel.Forever); err != nil {
			logger.Error("low priority task failed to take mutex", "error", err)
			return 1
		}
		logger.Info("low priority task holds mutex", "effective_priority", ctx.Self().EffectivePriority())
		ctx.Sleep(2)
		if err := k.ReleaseMutex(ctx.Self(), m); err != nil {
			logger.Error("low priority task failed to release mutex", "error", err)
			return 1
		}
		close(lowDone)
		return 0
	}, 1, 0, nil)
	k.Create("high", func(ctx *rtkernel.TaskContext, arg any) int {
		ctx.Sleep(1)
		if _, err := ctx.WaitOne(m, rtkernel.Forever); err != nil {
			logger.Error("high priority task failed to take mutex", "error", err)
			return 1
		}
		logger.Info("high priority task acquired mutex")
		k.ReleaseMutex(ctx.Self(), m)
		return 0
	}, 50, 0, nil)

	k.Start()
	defer k.Stop()

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	select {
	case <-lowDone:
	case <-time.After(2 * time.Second):
		logger.Warn("priority-inheritance demo timed out")
	}

	used, total := k.HeapUsage()
	logger.Info("heap usage", "used", used, "total", total)
	for _, ti := range k.ListTasks() {
		logger.Info("task", "pid", ti.PID, "name", ti.Name, "state", ti.State.String(), "base", ti.Base, "effective", ti.Effective)
	}

	metrics.Stop()
	snap := metrics.Snapshot()
	logger.Info("metrics",
		"tasks_created", snap.TasksCreated,
		"context_switches", snap.ContextSwitches,
		"wake_passes", snap.WakePasses,
		"priority_propagations", snap.PriorityPropagations,
		"idle_ticks", snap.IdleTicks,
		"cpu_utilization", snap.CPUUtilization)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-time.After(100 * time.Millisecond):
	}
}
