// rxminer - RandomX CPU pool miner
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxminer/rxminer/internal/api"
	"github.com/rxminer/rxminer/internal/config"
	"github.com/rxminer/rxminer/internal/job"
	"github.com/rxminer/rxminer/internal/pool"
	"github.com/rxminer/rxminer/internal/randomx"
	"github.com/rxminer/rxminer/internal/stats"
	"github.com/rxminer/rxminer/internal/util"
	"github.com/rxminer/rxminer/internal/worker"
)

var version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	// config.json first, CLI flags override
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	flag.Usage = printHelp
	poolAddr := flag.String("pool", cfg.Pool, "pool address and port")
	wallet := flag.String("wallet", cfg.Wallet, "wallet address")
	workerName := flag.String("worker", cfg.Worker, "worker name")
	password := flag.String("password", cfg.Password, "pool password")
	userAgent := flag.String("useragent", cfg.UserAgent, "user agent string")
	threads := flag.Int("threads", cfg.Threads, "number of mining threads")
	debug := flag.Bool("debug", cfg.Debug, "enable debug output")
	logFile := flag.Bool("logfile", cfg.LogFile, "enable logging to file")
	apiFlag := flag.Bool("api", cfg.API.Enabled, "enable the local stats API")
	flag.Parse()

	cfg.Pool = *poolAddr
	cfg.Wallet = *wallet
	cfg.Worker = *workerName
	cfg.Password = *password
	cfg.UserAgent = *userAgent
	cfg.Threads = *threads
	cfg.Debug = *debug
	cfg.LogFile = *logFile
	cfg.API.Enabled = *apiFlag

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logName := ""
	if cfg.LogFile {
		logName = config.LogFileName
	}
	if err := util.InitLogger(cfg.Debug, logName); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	util.Infof("rxminer v%s starting", version)
	util.Infof("Pool: %s | worker: %s | threads: %d", cfg.Pool, cfg.Worker, cfg.Threads)

	rx := randomx.NewContext("")
	registry := job.NewRegistry(rx)
	st := stats.New(cfg.Threads)

	// Allocation failures mean mining cannot proceed; everything else
	// (bad job payloads) is logged and skipped.
	fatalCh := make(chan error, 1)

	client := pool.NewClient(cfg.Pool, pool.Credentials{
		Wallet:   cfg.Wallet,
		Password: cfg.Password,
		Worker:   cfg.Worker,
		Agent:    cfg.UserAgent,
	}, func(j *job.Job) {
		err := registry.Publish(j)
		if err == nil {
			return
		}
		if errors.Is(err, randomx.ErrInit) {
			select {
			case fatalCh <- err:
			default:
			}
			return
		}
		util.Errorf("Failed to publish job %s: %v", j.ID, err)
	})

	// Initial connect+login is unrecoverable on failure; the listener
	// handles every later drop with its own backoff.
	if err := client.Connect(); err != nil {
		util.Errorf("%v", err)
		return 1
	}
	if err := client.Login(); err != nil {
		util.Errorf("%v", err)
		return 1
	}
	client.Listen()

	workers := worker.NewPool(cfg.Threads, rx, registry, client, st)
	workers.OnFatal(func(err error) {
		select {
		case fatalCh <- err:
		default:
		}
	})
	workers.Start()
	st.StartMonitor()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, st, registry)
		if err := apiServer.Start(); err != nil {
			util.Warnf("%v", err)
			apiServer = nil
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		util.Info("Shutting down...")
	case err := <-fatalCh:
		util.Errorf("Fatal: %v", err)
		exitCode = 1
	}

	// Workers first, then the socket, then the hashing substrate
	workers.Stop()
	st.Stop()
	client.Close()
	if apiServer != nil {
		apiServer.Stop()
	}
	rx.Close()

	st.LogSummary()
	return exitCode
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `rxminer - RandomX CPU pool miner

Usage: rxminer [options]

Options:
  --help               Show this help message
  --debug              Enable debug output
  --logfile            Enable logging to %s
  --threads N          Number of mining threads (default: hardware concurrency)
  --pool ADDRESS:PORT  Pool address and port (default: xmr-eu1.nanopool.org:14444)
  --wallet ADDRESS     Your wallet address (required)
  --worker NAME        Worker name (default: worker1)
  --password X         Pool password (default: x)
  --useragent AGENT    User agent string (default: MoneroMiner/1.0.0)
  --api                Enable the local stats API

Values may also be set in config.json in the working directory;
command-line flags override the file.

Example:
  rxminer --debug --logfile --threads 4 --wallet YOUR_WALLET_ADDRESS
`, config.LogFileName)
}
