package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"airshow-pos/config"
	"airshow-pos/handler"
	"airshow-pos/messaging"
	"airshow-pos/models"
	"airshow-pos/report"
	"airshow-pos/service"
	"airshow-pos/store"
)

// env is what every command needs once configuration is loaded.
type env struct {
	cfg     *config.Config
	log     *log.Logger
	store   store.Store
	svc     *service.Service
	clock   func() time.Time
	closers []io.Closer
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			e.log.WithError(err).Warn("close failed")
		}
	}
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("backend") {
		cfg.StorageBackend = c.String("backend")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: cfg.Logger(), clock: func() time.Time { return time.Now().In(loc) }}

	st, err := cfg.OpenStore(c.Context)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s storage", cfg.StorageBackend)
	}
	e.store = st
	e.closers = append(e.closers, st)

	var dispatcher service.EventDispatcher = service.LogDispatcher{Log: e.log}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		e.closers = append(e.closers, publisher)
		dispatcher = publisher
		e.log.WithField("topic", cfg.KafkaTopic).Info("publishing events to kafka")
	}

	e.svc = service.NewService(st, service.Options{
		Logger:           e.log,
		Dispatcher:       dispatcher,
		Location:         loc,
		StrictCategories: cfg.StrictCategories,
		ConflictRetries:  retriesOption(cfg.ConflictRetries),
	})
	return e, nil
}

// retriesOption maps a configured count to service.Options, where zero means the default.
func retriesOption(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// withEnv wraps a command action with setup and teardown.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(c, e)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(c *cli.Context, e *env) error {
	addr := e.cfg.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	h := handler.NewHandler(e.svc, handler.Options{
		Logger:            e.log,
		LowStockThreshold: e.cfg.LowStockThreshold,
		Clock:             e.clock,
	})
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Router(e.cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.WithFields(log.Fields{"addr": addr, "backend": e.cfg.StorageBackend}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-c.Context.Done():
	}

	e.log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	e.log.Info("Server exited gracefully")
	return nil
}

func migrate(c *cli.Context, e *env) error {
	pg, ok := e.store.(*store.PostgresStore)
	if !ok {
		return cli.Exit("migrate only applies to the postgres backend", 1)
	}
	if err := pg.Migrate(c.Context); err != nil {
		return err
	}
	e.log.Info("Database migrations executed successfully")
	return nil
}

func exportRange(c *cli.Context, now time.Time) (report.DateRange, error) {
	switch c.String("range") {
	case "today":
		return report.Today(now), nil
	case "week":
		return report.ThisWeek(now), nil
	case "":
	default:
		return report.DateRange{}, errors.Errorf("unknown range %q", c.String("range"))
	}
	today := now.Format(models.DateLayout)
	start, end := c.String("start"), c.String("end")
	if start == "" {
		start = today
	}
	if end == "" {
		end = today
	}
	return report.NewDateRange(start, end)
}

func export(c *cli.Context, e *env) error {
	rng, err := exportRange(c, e.clock())
	if err != nil {
		return err
	}
	d, err := report.Load(c.Context, e.svc, rng)
	if err != nil {
		return err
	}
	path := c.String("out")
	if path == "" {
		path = report.Filename(rng)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create export file")
	}
	opts := report.ExportOptions{
		Transactions: !c.Bool("no-transactions"),
		TurnedAway:   !c.Bool("no-turned-away"),
		Inventory:    !c.Bool("no-inventory"),
	}
	if err := report.WriteWorkbook(f, d, opts, e.clock()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close export file")
	}
	e.log.WithFields(log.Fields{
		"file":         path,
		"transactions": len(d.Transactions),
		"turned_away":  len(d.TurnedAway),
	}).Info("export written")
	return nil
}

func listItems(c *cli.Context, e *env) error {
	items, err := e.svc.ListItems(c.Context, service.ListFilter{
		ActiveOnly: !c.Bool("all"),
		Category:   models.Category(c.String("category")),
	})
	if err != nil {
		return err
	}
	return printJSON(items)
}

func addItem(c *cli.Context, e *env) error {
	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return errors.Wrap(err, "price")
	}
	item, err := e.svc.CreateItem(c.Context, service.NewItem{
		Name:         c.String("name"),
		Category:     models.Category(c.String("category")),
		Price:        price,
		InitialStock: c.Int("stock"),
		Description:  c.String("description"),
		SKU:          c.String("sku"),
	})
	if err != nil {
		return err
	}
	return printJSON(item)
}

func deactivateItem(c *cli.Context, e *env) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: items deactivate <item-id>", 2)
	}
	return e.svc.DeactivateItem(c.Context, c.Args().First())
}

func adjustStock(c *cli.Context, e *env) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: items stock <item-id> <delta>", 2)
	}
	delta, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return errors.Wrap(err, "delta")
	}
	stock, err := e.svc.AdjustStock(c.Context, c.Args().First(), delta)
	if err != nil {
		return err
	}
	fmt.Printf("stock: %d\n", stock)
	return nil
}

func lowStock(c *cli.Context, e *env) error {
	threshold := e.cfg.LowStockThreshold
	if c.IsSet("threshold") {
		threshold = c.Int("threshold")
	}
	items, err := e.svc.LowStock(c.Context, threshold)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func recordTurnedAway(c *cli.Context, e *env) error {
	var (
		entry models.TurnedAwayEntry
		err   error
	)
	if c.IsSet("notes") || c.Bool("custom") {
		entry, err = e.svc.RecordCustomTurnedAway(c.Context, c.String("reason"), c.String("notes"))
	} else {
		entry, err = e.svc.RecordTurnedAway(c.Context, c.String("reason"))
	}
	if err != nil {
		return err
	}
	return printJSON(entry)
}

func todayTurnedAway(c *cli.Context, e *env) error {
	entries, err := e.svc.TurnedAwayToday(c.Context)
	if err != nil {
		return err
	}
	reason, n := service.MostCommonReason(entries)
	fmt.Printf("turned away today: %d\n", len(entries))
	if n > 0 {
		fmt.Printf("most common reason: %s (%d)\n", reason, n)
	}
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pos",
		Usage: "airshow booth point of sale",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Usage: "storage backend: file, postgres, mongo or memory"},
			&cli.StringFlag{Name: "data-dir", Usage: "directory for the file backend"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "addr", Usage: "listen address"}},
				Action: withEnv(serve),
			},
			{
				Name:   "migrate",
				Usage:  "create the postgres tables",
				Action: withEnv(migrate),
			},
			{
				Name:  "export",
				Usage: "write an xlsx workbook for a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Usage: "first day, YYYY-MM-DD"},
					&cli.StringFlag{Name: "end", Usage: "last day, YYYY-MM-DD"},
					&cli.StringFlag{Name: "range", Usage: "today or week"},
					&cli.StringFlag{Name: "out", Usage: "output path"},
					&cli.BoolFlag{Name: "no-transactions"},
					&cli.BoolFlag{Name: "no-turned-away"},
					&cli.BoolFlag{Name: "no-inventory"},
				},
				Action: withEnv(export),
			},
			{
				Name:  "items",
				Usage: "manage inventory",
				Subcommands: []*cli.Command{
					{
						Name: "list",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "all", Usage: "include inactive items"},
							&cli.StringFlag{Name: "category"},
						},
						Action: withEnv(listItems),
					},
					{
						Name: "add",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "category", Value: string(models.CategoryOther)},
							&cli.StringFlag{Name: "price", Required: true},
							&cli.IntFlag{Name: "stock"},
							&cli.StringFlag{Name: "description"},
							&cli.StringFlag{Name: "sku"},
						},
						Action: withEnv(addItem),
					},
					{Name: "deactivate", ArgsUsage: "<item-id>", Action: withEnv(deactivateItem)},
					{Name: "stock", ArgsUsage: "<item-id> <delta>", Action: withEnv(adjustStock)},
					{
						Name:   "low-stock",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "threshold"}},
						Action: withEnv(lowStock),
					},
				},
			},
			{
				Name:  "turned-away",
				Usage: "log visitors who left without buying",
				Subcommands: []*cli.Command{
					{
						Name: "record",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "reason"},
							&cli.StringFlag{Name: "notes"},
							&cli.BoolFlag{Name: "custom", Usage: "require a reason"},
						},
						Action: withEnv(recordTurnedAway),
					},
					{Name: "today", Action: withEnv(todayTurnedAway)},
				},
			},
		},
	}
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Fatal("pos failed")
	}
}
