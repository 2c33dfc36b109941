// heat3d runs the split CPU/accelerator diffusion engine from an ini
// configuration, streaming progress to an optional websocket monitor
// and printing the per-phase timing table on completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/monitor"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/runner"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/utils"
)

func main() {
	var (
		configPath  = flag.String("config", "heat3d.ini", "path to the run configuration")
		deviceProps = flag.String("device", "", "OCCA device properties JSON; empty selects the default backend chain")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, monitorAddr, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("bad configuration")
	}

	if cfg.Mode != runner.ModeCPUOnly {
		device, err := utils.CreateDevice(*deviceProps)
		if err != nil {
			log.WithError(err).Fatal("device creation failed")
		}
		defer device.Free()
		cfg.Device = device
	}

	if monitorAddr != "" {
		hub := monitor.NewHub()
		defer hub.Close()
		cfg.OnIteration = hub.OnIteration
		go func() {
			http.HandleFunc("/progress", hub.Handler())
			if err := http.ListenAndServe(monitorAddr, nil); err != nil {
				log.WithError(err).Warn("monitor server stopped")
			}
		}()
		log.WithField("addr", monitorAddr).Info("progress monitor listening")
	}

	sched, err := runner.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("setup failed")
	}
	defer sched.Free()

	// SIGINT requests a cooperative stop at the next iteration boundary
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := sched.Run(ctx)
	if err != nil {
		log.WithError(err).Fatal("run failed")
	}

	mn, mx := res.MinMax()
	fmt.Printf("completed %d iterations on %dx%dx%d grid\n", res.Iterations, res.Nx, res.Ny, res.Nz)
	fmt.Printf("field sum %.6e, min %.6e, max %.6e\n", res.Sum(), mn, mx)
	fmt.Println("phase timings:")
	phases := make([]string, 0, len(res.Timings))
	for phase := range res.Timings {
		phases = append(phases, string(phase))
	}
	sort.Strings(phases)
	for _, phase := range phases {
		fmt.Printf("  %-10s %10.6f s\n", phase, res.Timings[runner.Phase(phase)])
	}
}

// loadConfig reads the ini file, falling back to the reference setup
// (36^3 padded grid, Dirichlet walls at 1.0, centre block initial
// condition) for any missing key.
func loadConfig(path string) (runner.Config, string, error) {
	file, err := ini.Load(path)
	if err != nil {
		log.WithError(err).Warn("config not readable, using defaults")
		file = ini.Empty()
	}

	g := file.Section("grid")
	spec := grid.Spec{
		Nx:   g.Key("nx").MustInt(32),
		Ny:   g.Key("ny").MustInt(32),
		Nz:   g.Key("nz").MustInt(32),
		Halo: g.Key("halo").MustInt(2),
		Hx:   g.Key("hx").MustFloat64(1.0),
		Hy:   g.Key("hy").MustFloat64(1.0),
		Hz:   g.Key("hz").MustFloat64(1.0),
	}

	r := file.Section("run")
	alpha := r.Key("alpha").MustFloat64(1.0)
	dt := r.Key("dt").MustFloat64(0)
	if dt <= 0 {
		dt = 0.9 * grid.StableDt(spec.Hx, spec.Hy, spec.Hz, alpha)
	}
	params, err := grid.NewStencilParams(dt, spec.Hx, spec.Hy, spec.Hz, alpha,
		r.Key("iterations").MustInt(100))
	if err != nil {
		return runner.Config{}, "", err
	}

	var mode runner.Mode
	switch r.Key("mode").MustString("hybrid") {
	case "hybrid":
		mode = runner.ModeHybrid
	case "cpu":
		mode = runner.ModeCPUOnly
	case "device":
		mode = runner.ModeDeviceOnly
	default:
		return runner.Config{}, "", fmt.Errorf("unknown run mode %q", r.Key("mode").String())
	}

	b := file.Section("boundary")
	var bc halo.Spec
	switch b.Key("kind").MustString("dirichlet") {
	case "dirichlet":
		bc = halo.FixedValue(spec.Halo, b.Key("value").MustFloat64(1.0))
	case "periodic":
		bc = halo.AllPeriodic(spec.Halo)
	default:
		return runner.Config{}, "", fmt.Errorf("unknown boundary kind %q", b.Key("kind").String())
	}

	cfg := runner.Config{
		Grid:          spec,
		Params:        params,
		Boundary:      bc,
		CPUPlanes:     file.Section("split").Key("cpu_planes").MustInt(spec.Nz / 2),
		Mode:          mode,
		Workers:       r.Key("workers").MustInt(0),
		CheckInterval: r.Key("check_interval").MustInt(0),
		Init:          centreBlock(spec),
	}

	addr := ""
	m := file.Section("monitor")
	if m.Key("enabled").MustBool(false) {
		addr = m.Key("addr").MustString(":9000")
	}
	return cfg, addr, nil
}

// centreBlock is the reference initial condition: a block of 1.0 over
// the central half of each axis, zero elsewhere.
func centreBlock(spec grid.Spec) func(i, j, k int) float64 {
	return func(i, j, k int) float64 {
		if i >= spec.Nx/4 && i < 3*spec.Nx/4 &&
			j >= spec.Ny/4 && j < 3*spec.Ny/4 &&
			k >= spec.Nz/4 && k < 3*spec.Nz/4 {
			return 1.0
		}
		return 0.0
	}
}
