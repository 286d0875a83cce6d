// Command hc-receiver decodes the data lines of heating controllers wired to
// GPIO inputs and publishes the readings to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sweeney/hc-receiver/internal/config"
	"github.com/sweeney/hc-receiver/internal/devices"
	"github.com/sweeney/hc-receiver/internal/gpio"
	"github.com/sweeney/hc-receiver/internal/logging"
	"github.com/sweeney/hc-receiver/internal/logic"
	"github.com/sweeney/hc-receiver/internal/mqtt"
	"github.com/sweeney/hc-receiver/internal/receiver"
	"github.com/sweeney/hc-receiver/internal/status"
	"github.com/sweeney/hc-receiver/internal/web"
)

// statsInterval is how often decoder counters are copied into the tracker.
const statsInterval = 10 * time.Second

type flags struct {
	config       string
	broker       string
	clientID     string
	chip         string
	controllers  string
	httpAddr     string
	wsBroker     string
	heartbeat    time.Duration
	logLevel     string
	logFormat    string
	devices      string
	queue        int
	printDevices bool
}

func defineFlags(fs *flag.FlagSet) *flags {
	def := config.Default()
	f := &flags{}
	fs.StringVar(&f.config, "config", "", "YAML config file (flags override its values)")
	fs.StringVar(&f.broker, "broker", def.Broker, "MQTT broker address")
	fs.StringVar(&f.clientID, "client-id", "", "MQTT client id (random if empty)")
	fs.StringVar(&f.chip, "chip", def.Chip, "GPIO chip name")
	fs.StringVar(&f.controllers, "controllers", "", `Controller data lines as "id:pin,id:pin" (default "1:4")`)
	fs.StringVar(&f.httpAddr, "http", def.HTTP, "HTTP status address (empty to disable)")
	fs.StringVar(&f.wsBroker, "ws-broker", def.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	fs.DurationVar(&f.heartbeat, "heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&f.logLevel, "log-level", def.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", def.LogFormat, "Log format: console or json")
	fs.StringVar(&f.devices, "devices", "", "YAML device table replacing the built-in one")
	fs.IntVar(&f.queue, "queue", def.QueueSize, "Readings buffered between decoders and publisher")
	fs.BoolVar(&f.printDevices, "print-devices", false, "Print the device table and exit")
	return f
}

// buildConfig loads the config file, if any, and applies the flags that were
// set explicitly on the command line.
func buildConfig(fs *flag.FlagSet, f *flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return config.Config{}, err
		}
	}

	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "broker":
			cfg.Broker = f.broker
		case "client-id":
			cfg.ClientID = f.clientID
		case "chip":
			cfg.Chip = f.chip
		case "controllers":
			var ctls []config.Controller
			if ctls, err = config.ParseControllers(f.controllers); err == nil {
				cfg.Controllers = ctls
			}
		case "http":
			cfg.HTTP = f.httpAddr
		case "ws-broker":
			cfg.WSBroker = f.wsBroker
		case "heartbeat":
			cfg.Heartbeat = f.heartbeat
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "log-format":
			cfg.LogFormat = f.logFormat
		case "devices":
			cfg.Devices = f.devices
		case "queue":
			cfg.QueueSize = f.queue
		}
	})
	if err != nil {
		return config.Config{}, err
	}

	cfg.Finish()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	f := defineFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := buildConfig(flag.CommandLine, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hc-receiver: %v\n", err)
		os.Exit(2)
	}

	out := logging.NonBlocking(os.Stderr)
	logger, err := logging.New(out, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hc-receiver: %v\n", err)
		os.Exit(2)
	}

	err = run(cfg, f.printDevices, logger)
	if err != nil {
		logger.Error().Err(err).Msg("fatal")
	}
	out.Close()
	if err != nil {
		os.Exit(1)
	}
}

func loadRegistry(path string) (*devices.Registry, error) {
	if path == "" {
		return devices.Default(), nil
	}
	return devices.LoadFile(path)
}

func run(cfg config.Config, printDevices bool, logger zerolog.Logger) error {
	reg, err := loadRegistry(cfg.Devices)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}

	// Print devices mode
	if printDevices {
		printDeviceTable(os.Stdout, reg)
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	wsBroker := resolveWSBroker(cfg.WSBroker, cfg.Broker, logger)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		Chip:        cfg.Chip,
		HTTPPort:    cfg.HTTP,
		WSBroker:    wsBroker,
		QueueSize:   cfg.QueueSize,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start one receiver per controller data line
	readings := make(chan logic.Reading, cfg.QueueSize)
	lines := make([]line, 0, len(cfg.Controllers))
	for _, ctl := range cfg.Controllers {
		src, err := gpio.NewRealSource(cfg.Chip, ctl.Pin, logger)
		if err != nil {
			return fmt.Errorf("init gpio for controller %d: %w", ctl.ID, err)
		}
		rcv := receiver.New(ctl.ID, ctl.Pin, src, reg, readings, logger)
		if err := rcv.Start(); err != nil {
			src.Close()
			return err
		}
		defer func() {
			if err := rcv.Close(); err != nil {
				logger.Warn().Err(err).Msg("receiver close failed")
			}
		}()
		tracker.AddController(ctl.ID, ctl.Pin)
		lines = append(lines, rcv)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn().Err(err).Msg("failed to publish startup event")
	} else {
		logger.Info().Msg("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP).Msg("http status server listening")
	}

	logger.Info().
		Str("broker", cfg.Broker).
		Str("client_id", cfg.ClientID).
		Str("chip", cfg.Chip).
		Int("controllers", len(cfg.Controllers)).
		Int("devices", reg.Len()).
		Dur("heartbeat", cfg.Heartbeat).
		Msg("started")

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		readings:   readings,
		lines:      lines,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		log:        logger,
		now:        time.Now,
		heartbeat:  heartbeat,
		statsTick:  statsTicker.C,
		sig:        sigCh,
	})
}

// line is the part of a receiver the run loop reads counters from.
type line interface {
	Controller() int
	Stats() logic.Stats
	Dropped() uint64
}

type loop struct {
	readings   <-chan logic.Reading
	lines      []line
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	log        zerolog.Logger
	now        func() time.Time
	heartbeat  <-chan time.Time // nil disables heartbeats
	statsTick  <-chan time.Time
	sig        <-chan os.Signal
}

// runLoop publishes readings until a signal arrives or the readings channel
// is closed. All tracker writes happen here.
func runLoop(l loop) error {
	for {
		select {
		case s := <-l.sig:
			l.log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				l.refresh()
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				l.log.Warn().Err(err).Msg("failed to publish shutdown event")
			} else {
				l.log.Info().Msg("published shutdown event")
			}
			return nil

		case r, ok := <-l.readings:
			if !ok {
				l.log.Info().Msg("readings closed")
				return nil
			}
			l.log.Debug().Int("controller", r.Controller).Str("device", r.Record.Device()).Msg("reading")
			if l.tracker != nil {
				l.tracker.RecordReading(r)
			}
			if err := l.publisher.Publish(r); err != nil {
				// Don't crash on publish failure
				l.log.Warn().Err(err).Int("controller", r.Controller).Msg("publish error")
			}

		case <-l.statsTick:
			if l.tracker != nil {
				l.refresh()
			}

		case <-l.heartbeat:
			hbEvent := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "HEARTBEAT",
			}
			if l.tracker != nil {
				l.refresh()
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					l.tracker.SetNetwork(net)
				}
				snap := l.tracker.Snapshot()
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				l.log.Info().Dur("uptime", snap.Uptime().Truncate(time.Second)).Bool("ready", snap.Ready()).Msg("heartbeat")
			}
			if err := l.publisher.PublishSystem(hbEvent); err != nil {
				l.log.Warn().Err(err).Msg("heartbeat publish error")
			}
		}
	}
}

// refresh copies decoder counters and the MQTT state into the tracker.
func (l loop) refresh() {
	for _, ln := range l.lines {
		l.tracker.UpdateStats(ln.Controller(), ln.Stats(), ln.Dropped())
	}
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// piHelperEnvFile is read when the variables are not in the environment.
var piHelperEnvFile = "/run/pi-helper.env"

func readNetworkInfo() *status.NetworkInfo {
	if os.Getenv(envNetworkStatus) != "" {
		return networkInfo(os.Getenv)
	}
	vars, err := godotenv.Read(piHelperEnvFile)
	if err != nil {
		return nil
	}
	return networkInfo(func(k string) string { return vars[k] })
}

func networkInfo(get func(string) string) *status.NetworkInfo {
	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// printDeviceTable writes one line per known controller model.
func printDeviceTable(w io.Writer, reg *devices.Registry) {
	for _, d := range reg.Definitions() {
		fmt.Fprintf(w, "%3d %-8s %2d bytes  %s\n", d.Code, d.Name, d.ByteCount, strings.Join(fieldNames(d), " "))
	}
}

// fieldNames lists the record keys a definition produces, in byte order.
func fieldNames(d devices.Definition) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, m := range d.Bytes {
		if m.Kind != devices.KindOutputs {
			add(m.Field)
			continue
		}
		for _, n := range m.Outputs {
			if n != 0 {
				add(fmt.Sprintf("%s%d", m.Field, n))
			}
		}
	}
	return names
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string, logger zerolog.Logger) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		logger.Warn().Err(err).Str("broker", broker).Msg("ws-broker: cannot parse broker")
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
