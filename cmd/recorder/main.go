// Command recorder captures skeletons from a depth camera and writes one CSV
// row per tracked body, rotated into the room frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/config"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/monitoring"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/sensor"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/session"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/tracker"
	"github.com/CanineAnimal/revealing-science-of-kinect/internal/version"
)

var (
	configPath = flag.String("config", "", "Session file (.json, .yaml or .yml); flags override its values")
	output     = flag.String("output", "", "Destination CSV file (prompted when empty)")
	overwrite  = flag.Bool("overwrite", false, "Replace the destination file if it already exists")
	outputRoot = flag.String("output-root", "", "Refuse destinations outside this directory")

	angleX   = flag.Float64("angle-x", 0, "Camera angle around the X axis in degrees (angles are prompted when none is given)")
	angleY   = flag.Float64("angle-y", 0, "Camera angle around the Y axis in degrees")
	angleZ   = flag.Float64("angle-z", 0, "Camera angle around the Z axis in degrees")
	duration = flag.Float64("duration", 0, "Recording length in seconds (prompted when unset)")
	fps      = flag.Float64("fps", config.DefaultFPS, "Target frames per second (at most 30)")
	depthArg = flag.String("depth-mode", "", "Depth mode (NFOV_UNBINNED, NFOV_2X2BINNED, WFOV_2X2BINNED, WFOV_UNBINNED)")

	devMode = flag.Bool("dev", false, "Record synthetic skeletons instead of a sensor")
	replay  = flag.String("replay", "", "Replay a recorded skeleton bridge capture instead of a sensor")
	port    = flag.String("port", "/dev/ttyACM0", "Serial port of the skeleton bridge (ignored with -dev or -replay)")
	baud    = flag.Int("baud", sensor.DefaultBaudRate, "Serial baud rate")

	adminListen = flag.String("admin-listen", "", "Serve the debug admin page on this address (disabled when empty)")
	logFile     = flag.String("log-file", "", "Write logs to this rotating file instead of stderr")
	debug       = flag.Bool("debug", false, "Enable per-frame diagnostic and trace logging")
	yes         = flag.Bool("yes", false, "Start recording without waiting for confirmation")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	closeLogs := setupLogging(*logFile, *debug)
	defer closeLogs()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var file *config.File
	if *configPath != "" {
		var err error
		if file, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
	}

	opts, err := mergeOptions(currentFlags(), set, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitoring.Opsf("starting %s", version.String())
	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		monitoring.Opsf("recording failed: %v", err)
		fmt.Fprintf(os.Stderr, "Failed with error: %v\n", err)
		return 1
	}
	return 0
}

// setupLogging routes the ops stream to stderr or a rotating file. Diag
// and trace follow it only with -debug.
func setupLogging(path string, debug bool) func() {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if path != "" {
		rw := monitoring.NewRotatingWriter(path, 50, 5)
		w = rw
		closeFn = func() { rw.Close() }
	}
	lw := monitoring.LogWriters{Ops: w}
	if debug {
		lw.Diag = w
		lw.Trace = w
	}
	monitoring.SetLogWriters(lw)
	return closeFn
}

// flagValues is a snapshot of the parsed command line.
type flagValues struct {
	Output     string
	Overwrite  bool
	OutputRoot string
	AngleX     float64
	AngleY     float64
	AngleZ     float64
	Duration   float64
	FPS        float64
	DepthMode  string
	Dev        bool
	Replay     string
	Port       string
	Baud       int
	Admin      string
	Yes        bool
}

func currentFlags() flagValues {
	return flagValues{
		Output:     *output,
		Overwrite:  *overwrite,
		OutputRoot: *outputRoot,
		AngleX:     *angleX,
		AngleY:     *angleY,
		AngleZ:     *angleZ,
		Duration:   *duration,
		FPS:        *fps,
		DepthMode:  *depthArg,
		Dev:        *devMode,
		Replay:     *replay,
		Port:       *port,
		Baud:       *baud,
		Admin:      *adminListen,
		Yes:        *yes,
	}
}

// options is everything run needs, after defaults, the session file and
// the command line have been layered in that order.
type options struct {
	params       config.Params
	haveAngles   bool
	haveDuration bool

	depthMode  sensor.DepthMode
	queueDepth int

	dev      bool
	replay   string
	port     string
	portOpts sensor.PortOptions

	adminListen string
	confirm     bool
}

// mergeOptions layers explicitly set flags over the session file over the
// defaults. set holds the names of the flags given on the command line.
func mergeOptions(fv flagValues, set map[string]bool, file *config.File) (options, error) {
	opts := options{
		params:      config.DefaultParams(),
		dev:         fv.Dev,
		replay:      fv.Replay,
		port:        fv.Port,
		portOpts:    sensor.PortOptions{BaudRate: fv.Baud},
		adminListen: fv.Admin,
		confirm:     !fv.Yes,
	}

	if file != nil {
		file.ApplyTo(&opts.params)
		opts.haveAngles = file.AngleXDeg != nil || file.AngleYDeg != nil || file.AngleZDeg != nil
		opts.haveDuration = file.DurationSecs != nil
		if s := file.Serial; s != nil {
			if s.Port != "" && !set["port"] {
				opts.port = s.Port
			}
			if s.BaudRate != 0 && !set["baud"] {
				opts.portOpts.BaudRate = s.BaudRate
			}
			opts.portOpts.DataBits = s.DataBits
			opts.portOpts.StopBits = s.StopBits
			opts.portOpts.Parity = s.Parity
		}
	}

	if set["output"] {
		opts.params.Destination = fv.Output
	}
	if set["overwrite"] {
		opts.params.Overwrite = fv.Overwrite
	}
	if set["output-root"] && fv.OutputRoot != "" {
		opts.params.OutputRoots = []string{fv.OutputRoot}
	}
	if set["angle-x"] {
		opts.params.Angles.X = float32(fv.AngleX)
		opts.haveAngles = true
	}
	if set["angle-y"] {
		opts.params.Angles.Y = float32(fv.AngleY)
		opts.haveAngles = true
	}
	if set["angle-z"] {
		opts.params.Angles.Z = float32(fv.AngleZ)
		opts.haveAngles = true
	}
	if set["duration"] {
		opts.params.DurationSeconds = fv.Duration
		opts.haveDuration = true
	}
	if set["fps"] {
		opts.params.TargetFPS = fv.FPS
	}

	mode := file.GetDepthMode()
	if set["depth-mode"] {
		mode = fv.DepthMode
	}
	dm, err := sensor.ParseDepthMode(mode)
	if err != nil {
		return options{}, err
	}
	opts.depthMode = dm
	opts.queueDepth = file.GetTrackerQueueDepth()

	if opts.dev && opts.replay != "" {
		return options{}, fmt.Errorf("%w: -dev and -replay are mutually exclusive", config.ErrInvalidConfig)
	}
	return opts, nil
}

// run asks for whatever the operator has not supplied, then records one
// session.
func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	p := newPrompter(in, out)
	if opts.params.Destination == "" {
		dest, err := p.destination()
		if err != nil {
			return err
		}
		opts.params.Destination = dest
	}
	if !opts.haveAngles {
		angles, err := p.angles()
		if err != nil {
			return err
		}
		opts.params.Angles = angles
	}
	if !opts.haveDuration {
		secs, err := p.duration()
		if err != nil {
			return err
		}
		opts.params.DurationSeconds = secs
	}

	cfg, err := config.NewSessionConfig(opts.params)
	if err != nil {
		return err
	}

	dev, err := openDevice(opts)
	if err != nil {
		return err
	}
	defer dev.Close()

	queueDepth := opts.queueDepth
	sess, err := session.New(cfg, session.Deps{
		Device: dev,
		NewTracker: func(c sensor.Calibration) (tracker.Tracker, error) {
			return tracker.NewBridgeTracker(c, tracker.Options{QueueDepth: queueDepth}), nil
		},
		DepthMode: opts.depthMode,
	})
	if err != nil {
		return err
	}

	if opts.adminListen != "" {
		shutdown := serveAdmin(opts.adminListen, sess)
		defer shutdown()
	}

	if opts.confirm {
		if err := p.confirm(); err != nil {
			return err
		}
	}

	rep, err := sess.Run(ctx)
	if err != nil {
		return err
	}
	monitoring.Opsf("session %s: %d frames dispatched, %d rows, p95 latency %.1f ms",
		rep.ID, rep.Frames, rep.Rows, rep.Stats.Latency.P95Ms)
	fmt.Fprintln(out, "Finished body tracking processing!")
	return nil
}

// openDevice picks the frame source. A failed open returns a nil
// interface, never a typed nil.
func openDevice(opts options) (sensor.Device, error) {
	switch {
	case opts.dev:
		return sensor.NewSyntheticDevice(sensor.SyntheticOptions{Bodies: 2, IndexMap: true}), nil
	case opts.replay != "":
		d, err := sensor.NewReplayDevice(opts.replay)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		if opts.port == "" {
			return nil, fmt.Errorf("%w: serial port is required", config.ErrInvalidConfig)
		}
		d, err := sensor.NewSerialDevice(opts.port, opts.portOpts)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func serveAdmin(addr string, sess *session.Session) (shutdown func()) {
	mux := http.NewServeMux()
	sess.AttachAdminRoutes(mux)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Opsf("admin server error: %v", err)
		}
	}()
	monitoring.Opsf("admin page listening on %s", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			monitoring.Opsf("admin server shutdown: %v", err)
		}
	}
}
