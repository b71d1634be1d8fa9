package commands

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"log/syslog"
	"net/http"
	_ "net/http/pprof" // no_lint
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logrus_syslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/skycoin/sgip/internal/metrics"
	"github.com/skycoin/sgip/pkg/client"
	"github.com/skycoin/sgip/pkg/session"
	"github.com/skycoin/sgip/pkg/util/pathutil"
)

const configEnv = "SGIP_CONFIG"
const defaultShutdownTimeout = 10 * time.Second

type runCfg struct {
	syslogAddr  string
	tag         string
	logLevel    string
	profileMode string
	port        string
	args        []string

	profileStop  func()
	logger       *logging.Logger
	masterLogger *logging.MasterLogger
	conf         *client.Config
	registry     *prometheus.Registry
	metricsSrv   *http.Server
	client       *client.Client
	handler      *printHandler
	session      *session.Session
}

var cfg = &runCfg{}

var rootCmd = &cobra.Command{
	Use:     "sgip-client",
	Short:   "Client for SGIP short message gateways",
	Version: client.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfg.syslogAddr, "syslog", "", "none", "syslog server address. E.g. localhost:514")
	rootCmd.PersistentFlags().StringVarP(&cfg.tag, "tag", "", "sgip-client", "logging tag")
	rootCmd.PersistentFlags().StringVarP(&cfg.logLevel, "log-level", "l", "", "logging level, overrides the config value")
	rootCmd.PersistentFlags().StringVarP(&cfg.profileMode, "profile", "p", "none", "enable profiling with pprof. Mode:  none or one of: [cpu, mem, mutex, block, trace, http]")
	rootCmd.PersistentFlags().StringVarP(&cfg.port, "port", "", "6060", "port for http-mode of pprof")
}

// Execute executes root CLI command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func (cfg *runCfg) startProfiler() *runCfg {
	var option func(*profile.Profile)
	switch cfg.profileMode {
	case "none":
		cfg.profileStop = func() {}
		return cfg
	case "http":
		go func() {
			log.Println(http.ListenAndServe(fmt.Sprintf("localhost:%v", cfg.port), nil))
		}()
		cfg.profileStop = func() {}
		return cfg
	case "cpu":
		option = profile.CPUProfile
	case "mem":
		option = profile.MemProfile
	case "mutex":
		option = profile.MutexProfile
	case "block":
		option = profile.BlockProfile
	case "trace":
		option = profile.TraceProfile
	default:
		log.Fatalf("invalid profile mode %q", cfg.profileMode)
	}
	cfg.profileStop = profile.Start(profile.ProfilePath("./logs/"+cfg.tag), option).Stop
	return cfg
}

func (cfg *runCfg) startLogger() *runCfg {
	cfg.masterLogger = logging.NewMasterLogger()
	cfg.logger = cfg.masterLogger.PackageLogger(cfg.tag)

	if cfg.syslogAddr != "none" {
		hook, err := logrus_syslog.NewSyslogHook("udp", cfg.syslogAddr, syslog.LOG_INFO, cfg.tag)
		if err != nil {
			cfg.logger.Error("Unable to connect to syslog daemon:", err)
		} else {
			cfg.masterLogger.AddHook(hook)
			cfg.masterLogger.Out = ioutil.Discard
			logging.AddHook(hook)
			logging.SetOutputTo(ioutil.Discard)
		}
	}
	return cfg
}

func (cfg *runCfg) readConfig() *runCfg {
	configPath, err := pathutil.FindConfigPath(cfg.args, 0, configEnv, pathutil.ClientDefaults())
	if err != nil {
		cfg.logger.Warnf("No config file found, using defaults: %s", err)
		cfg.conf = client.DefaultConfig()
	} else if cfg.conf, err = client.ReadConfig(configPath); err != nil {
		cfg.logger.Fatalf("Failed to read config %s: %s", configPath, err)
	}

	level := cfg.conf.LogLevel
	if cfg.logLevel != "" {
		level = cfg.logLevel
	}
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		cfg.logger.Fatalf("Invalid log level %q: %s", level, err)
	}
	cfg.masterLogger.SetLevel(lvl)
	logging.SetLevel(lvl)
	return cfg
}

func (cfg *runCfg) startMetrics() *runCfg {
	cfg.registry = prometheus.NewRegistry()
	if cfg.conf.Metrics.Addr == "" {
		return cfg
	}
	cfg.metricsSrv = &http.Server{
		Addr:    cfg.conf.Metrics.Addr,
		Handler: metricsRouter(cfg.registry, cfg.masterLogger.PackageLogger("metrics")),
	}
	go func() {
		if err := cfg.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cfg.logger.Error("Metrics server failed: ", err)
		}
	}()
	cfg.logger.Infof("Serving metrics on %s", cfg.conf.Metrics.Addr)
	return cfg
}

func (cfg *runCfg) bindSession() *runCfg {
	opts := []client.Option{client.SetLogger(cfg.masterLogger.PackageLogger("client"))}
	if cfg.registry != nil {
		opts = append(opts, client.SetRecorder(metrics.NewPrometheus(cfg.conf.Metrics.Namespace, cfg.registry)))
	}
	c, err := client.New(opts...)
	if err != nil {
		cfg.logger.Fatal("Failed to initialize client: ", err)
	}
	cfg.client = c
	cfg.handler = newPrintHandler(cfg.masterLogger.PackageLogger("handler"))

	s, err := c.Bind(context.Background(), cfg.conf, cfg.handler)
	if err != nil {
		cfg.logger.Fatal("Failed to bind: ", err)
	}
	cfg.session = s
	return cfg
}

func (cfg *runCfg) waitOsSignals() *runCfg {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}...)
	select {
	case <-ch:
	case <-cfg.handler.closed:
		cfg.logger.Warn("Gateway closed the connection")
		return cfg
	}
	go func() {
		select {
		case <-time.After(defaultShutdownTimeout):
			cfg.logger.Fatal("Timeout reached: terminating")
		case s := <-ch:
			cfg.logger.Fatalf("Received signal %s: terminating", s)
		}
	}()
	return cfg
}

func (cfg *runCfg) unbindSession() *runCfg {
	defer cfg.profileStop()

	if cfg.session.IsBound() {
		cfg.session.Unbind(context.Background(), cfg.conf.Session.BindTimeout.D())
	}
	entry := cfg.session.LogEntry()
	cfg.logger.WithFields(logrus.Fields{
		"sent_pdus":      entry.SentPDUs,
		"received_pdus":  entry.ReceivedPDUs,
		"sent_bytes":     entry.SentBytes,
		"received_bytes": entry.ReceivedBytes,
	}).Info("Session finished")

	if err := cfg.client.Close(); err != nil {
		cfg.logger.Error("Failed to close client: ", err)
	}
	if cfg.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := cfg.metricsSrv.Shutdown(ctx); err != nil {
			cfg.logger.Error("Failed to stop metrics server: ", err)
		}
	}
	return cfg
}
