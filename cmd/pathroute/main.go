// Command pathroute loads a pathway scene, routes every line around the
// other elements and prints the routes as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"pathlink/config"
	"pathlink/connections"
	"pathlink/logging"
	"pathlink/pathfinding"
	"pathlink/pathway"
	"pathlink/preview"
	"pathlink/scene"
	"pathlink/validation"

	"github.com/gdamore/tcell/v2"
)

type options struct {
	scene   string
	config  string
	output  string
	preview bool
}

// report is the JSON document written by pathroute.
type report struct {
	Revision uint64              `json:"revision"`
	Elements int                 `json:"elements"`
	Dangling []string            `json:"dangling,omitempty"`
	Routes   []connections.Route `json:"routes"`
}

func main() {
	var opts options
	flag.StringVar(&opts.scene, "scene", "", "Scene file path (HCL)")
	flag.StringVar(&opts.config, "config", "", "Config file path (HCL, default: built-in settings)")
	flag.StringVar(&opts.output, "o", "", "Output file path (default: stdout)")
	flag.BoolVar(&opts.preview, "preview", false, "Show the routed scene in the terminal")
	flag.Parse()

	if opts.scene == "" {
		fmt.Fprintf(os.Stderr, "Error: scene file required (-scene)\n")
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, opts, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return err
		}
	}
	logger := cfg.NewLogger(stderr)
	ctx = logging.WithLogger(ctx, logger)

	sc, err := scene.Load(opts.scene)
	if err != nil {
		return err
	}
	p := pathway.New(pathway.WithLogger(logger), pathway.WithMargins(cfg.Groups))
	if _, err := sc.Apply(p); err != nil {
		return err
	}

	rep := report{}
	for _, w := range p.DanglingReferences() {
		rep.Dangling = append(rep.Dangling, w.String())
	}
	if n := p.FixReferences(); n > 0 {
		logger.Warn("cleared dangling references", "count", n)
	}

	routerOpts := []connections.Option{
		connections.WithPadding(cfg.Router.Padding),
		connections.WithWorkers(cfg.Router.Workers),
	}
	if cfg.Router.CacheSize > 0 {
		routerOpts = append(routerOpts, connections.WithCache(pathfinding.NewRouteCache(cfg.Router.CacheSize)))
	}
	router := connections.NewRouter(p, cfg.NewRouter(), routerOpts...)

	routes, err := router.RouteAll(ctx, router.Lines())
	if err != nil {
		return err
	}
	validator := validation.NewRouteValidator()
	for _, rt := range routes {
		if rt.Fallback {
			logger.Warn("line routed with fallback", "line", rt.Line, "reason", rt.Reason)
			continue
		}
		line, _ := p.Element(rt.Line)
		for _, verr := range validator.Validate(rt.Segments, line.Points[0].Pos, line.Points[1].Pos) {
			logger.Warn("route failed validation", "line", rt.Line, "error", verr)
		}
	}
	logger.Info("routed scene", "lines", len(routes), "elements", p.Len(), "revision", p.Revision())

	rep.Revision = p.Revision()
	rep.Elements = p.Len()
	rep.Routes = routes
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode routes: %w", err)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Info("wrote routes", "path", opts.output)
	} else {
		fmt.Fprintln(stdout, string(data))
	}

	if opts.preview {
		return show(p.Elements(), routes)
	}
	return nil
}

func show(elements []pathway.Element, routes []connections.Route) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer screen.Fini()

	extent := preview.Extent(elements, routes)
	return preview.Run(screen, func(width, height int) (*preview.Canvas, error) {
		origin, unit := preview.Fit(width, height, extent)
		c, err := preview.NewCanvas(width, height, origin, unit)
		if err != nil {
			return nil, err
		}
		preview.DrawScene(c, elements, routes)
		return c, nil
	})
}
