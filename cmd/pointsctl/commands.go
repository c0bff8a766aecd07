package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"drinkpoint-api/internal/intake"
	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/rules"
	"drinkpoint-api/pkg/logger"
)

func newApp() *cli.App {
	rulesFlag := &cli.StringFlag{
		Name:    "rules",
		Usage:   "rules YAML file (built-in defaults when empty)",
		EnvVars: []string{"RULES_PATH"},
	}
	return &cli.App{
		Name:  "pointsctl",
		Usage: "operate the drink points database and rule set",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "create or update the database schema",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "driver", Value: "sqlite", EnvVars: []string{"DB_TYPE"}, Usage: "sqlite, mysql or postgres"},
					&cli.StringFlag{Name: "dsn", Required: true, EnvVars: []string{"DB_DSN"}, Usage: "data source name"},
				},
				Action: migrateAction,
			},
			{
				Name:      "award",
				Usage:     "score a classifier JSON result",
				ArgsUsage: "<file|->",
				Flags:     []cli.Flag{rulesFlag},
				Action:    awardAction,
			},
			{
				Name:      "badges",
				Usage:     "evaluate a stats snapshot JSON against the badge and character rules",
				ArgsUsage: "<file|->",
				Flags: []cli.Flag{
					rulesFlag,
					&cli.StringSliceFlag{Name: "held", Usage: "badge ids already held"},
				},
				Action: badgesAction,
			},
		},
	}
}

func newLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}
	log, err := logger.New("development", true)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func migrateAction(c *cli.Context) error {
	log := newLogger(c)
	store, err := repository.Open(c.Context, repository.Options{
		Driver: c.String("driver"),
		DSN:    c.String("dsn"),
	}, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "schema ready (%s)\n", store.Dialect().Name())
	return nil
}

func loadEngine(c *cli.Context) (*rules.Engine, error) {
	log := newLogger(c)
	if path := c.String("rules"); path != "" {
		return rules.LoadFile(path, log)
	}
	return rules.NewDefaultEngine(log), nil
}

// readInput reads the single positional argument, "-" meaning stdin.
func readInput(c *cli.Context) ([]byte, error) {
	if c.NArg() != 1 {
		return nil, cli.Exit("expected exactly one input file (use - for stdin)", 2)
	}
	name := c.Args().First()
	if name == "-" {
		return io.ReadAll(c.App.Reader)
	}
	return os.ReadFile(name)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type awardOutput struct {
	Observation model.DrinkObservation `json:"observation"`
	Award       model.PointAward       `json:"award"`
}

func awardAction(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	raw, err := readInput(c)
	if err != nil {
		return err
	}
	obs, err := intake.ParseJSON(raw)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return writeJSON(c.App.Writer, awardOutput{Observation: obs, Award: engine.ComputeAward(obs)})
}

type badgesOutput struct {
	NewBadges     []model.BadgeID     `json:"new_badges"`
	NewCharacters []model.CharacterID `json:"new_characters"`
}

func badgesAction(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	raw, err := readInput(c)
	if err != nil {
		return err
	}
	var snap model.UserStatsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	var held []model.BadgeID
	for _, v := range c.StringSlice("held") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				held = append(held, model.BadgeID(id))
			}
		}
	}

	out := badgesOutput{
		NewBadges:     engine.EvaluateBadges(snap, held),
		NewCharacters: engine.UnlockCharacters(snap.TotalPoints, nil),
	}
	if out.NewBadges == nil {
		out.NewBadges = []model.BadgeID{}
	}
	if out.NewCharacters == nil {
		out.NewCharacters = []model.CharacterID{}
	}
	return writeJSON(c.App.Writer, out)
}

