package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OCAP2/movement/internal/config"
	"github.com/OCAP2/movement/internal/database"
	"github.com/OCAP2/movement/internal/pathfind"
	"github.com/OCAP2/movement/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configDir string
	logLevel  string
	logToFile bool
	scenePath string
	tokenID   string
)

// out receives command results. Logs go to stderr or the log file.
var out io.Writer = os.Stdout

// BuildCLI assembles the command tree.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: "Measure, plan and commit token movement on a scene",
		Long: `tokenmove loads a YAML scene with its grid, walls, regions and tokens and
runs the movement engine against it: measuring paths, finding paths around
walls and committing movements one checkpoint leg at a time.`,
		Version:      CurrentVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(configDir, logLevel, logToFile)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configDir, "config", "c", ".", "directory holding "+config.FileName)
	flags.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flags.BoolVar(&logToFile, "log-file", false, "write logs to the configured logs directory")
	flags.StringVarP(&scenePath, "scene", "s", "scene.yaml", "scene file")
	flags.StringVarP(&tokenID, "token", "t", "", "token id")

	rootCmd.AddCommand(buildMeasureCommand())
	rootCmd.AddCommand(buildPlanCommand())
	rootCmd.AddCommand(buildMoveCommand())
	rootCmd.AddCommand(buildHistoryCommand())
	rootCmd.AddCommand(buildBackupsCommand())

	return rootCmd
}

func buildMeasureCommand() *cobra.Command {
	var path string
	var opts core.ConstrainOptions

	cmd := &cobra.Command{
		Use:     "measure",
		Short:   "Constrain and measure a path from the token",
		Example: `  tokenmove measure -t goblin --path '[[300,0],[300,300]]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			waypoints, err := parseWaypoints(path)
			if err != nil {
				return err
			}
			a, err := newApp(scenePath, false)
			if err != nil {
				return err
			}
			defer a.close()

			constrained, dropped, err := a.engine.Constrain(tokenID, waypoints, opts)
			if err != nil {
				return err
			}
			res, err := a.engine.Measure(tokenID, constrained)
			if err != nil {
				return err
			}
			return writeJSON(map[string]any{
				"constrained": dropped,
				"distance":    res.Distance,
				"cost":        core.Finite(res.Cost),
				"spaces":      res.Spaces,
				"diagonals":   res.Diagonals,
				"waypoints":   core.FiniteCosts(res.Waypoints),
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "waypoints as JSON, or @file")
	cmd.Flags().BoolVar(&opts.IgnoreWalls, "ignore-walls", false, "do not stop at walls")
	cmd.Flags().BoolVar(&opts.IgnoreCost, "ignore-cost", false, "do not stop at impassable terrain")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func buildPlanCommand() *cobra.Command {
	var to string
	var timeout time.Duration
	var opts pathfind.Options

	cmd := &cobra.Command{
		Use:     "plan",
		Short:   "Find a path from the token through the given waypoints",
		Example: `  tokenmove plan -t goblin --to '[[900,400]]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			waypoints, err := parseWaypoints(to)
			if err != nil {
				return err
			}
			a, err := newApp(scenePath, false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			opts.Delay = -1
			job, err := a.engine.FindPath(ctx, tokenID, waypoints, opts)
			if err != nil {
				return err
			}
			res := job.Wait(ctx)
			if res == nil {
				return fmt.Errorf("no path found within %s", timeout)
			}
			measured, err := a.engine.Measure(tokenID, res.Path)
			if err != nil {
				return err
			}
			return writeJSON(map[string]any{
				"path":        res.Path,
				"unreachable": res.Unreachable,
				"distance":    measured.Distance,
				"cost":        core.Finite(measured.Cost),
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "waypoints as JSON, or @file")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long")
	cmd.Flags().BoolVar(&opts.IgnoreWalls, "ignore-walls", false, "path through walls")
	cmd.Flags().BoolVar(&opts.IgnoreCost, "ignore-cost", false, "path through impassable terrain")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func buildMoveCommand() *cobra.Command {
	var (
		waypointsArg string
		userID       string
		method       string
		resumeKeys   []string
		req          core.MoveRequest
	)

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Commit a movement of the token",
		Long: `move commits the waypoints one checkpoint leg at a time. Region behaviors
may veto a leg or pause the movement; a paused movement is resumed with each
--resume key in order before the command returns.`,
		Example: `  tokenmove move -t goblin --user gm --waypoints '[[300,0],{"x":600,"y":0,"checkpoint":true}]' --resume trap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			waypoints, err := parseWaypoints(waypointsArg)
			if err != nil {
				return err
			}
			a, err := newApp(scenePath, !req.Constrain.Preview)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req.TokenID = tokenID
			req.UserID = userID
			req.Method = core.MovementMethod(method)
			req.Waypoints = waypoints

			moved, err := a.engine.Move(ctx, req)
			if err != nil {
				return err
			}
			if req.Constrain.Preview {
				return writeJSON(map[string]any{"moved": moved, "preview": true})
			}

			for _, key := range resumeKeys {
				st, ok := a.engine.Status(tokenID)
				if !ok || st.Status.Terminal() {
					break
				}
				if err := a.engine.ResumeMovement(ctx, st.MovementID, userID, key); err != nil {
					return fmt.Errorf("resume %q: %w", key, err)
				}
			}

			result := map[string]any{"moved": moved}
			if st, ok := a.engine.Status(tokenID); ok {
				result["movement"] = st
			}
			if t, ok := a.engine.Token(tokenID); ok {
				result["position"] = t.Position
			}
			return writeJSON(result)
		},
	}

	cmd.Flags().StringVar(&waypointsArg, "waypoints", "", "waypoints as JSON, or @file")
	cmd.Flags().StringVar(&userID, "user", "gm", "user the movement is committed for")
	cmd.Flags().StringVar(&method, "method", string(core.MethodAPI), "api, config, dragging, keyboard, paste or undo")
	cmd.Flags().StringSliceVar(&resumeKeys, "resume", nil, "resume keys applied while the movement is paused")
	cmd.Flags().BoolVar(&req.AutoRotate, "auto-rotate", false, "rotate the token along the path")
	cmd.Flags().BoolVar(&req.ShowRuler, "show-ruler", false, "show the ruler while animating")
	cmd.Flags().BoolVar(&req.Constrain.Preview, "preview", false, "constrain only, commit nothing")
	cmd.Flags().BoolVar(&req.Constrain.IgnoreWalls, "ignore-walls", false, "move through walls")
	cmd.Flags().BoolVar(&req.Constrain.IgnoreCost, "ignore-cost", false, "move through impassable terrain")
	_ = cmd.MarkFlagRequired("waypoints")
	return cmd
}

func buildHistoryCommand() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the recorded movement history of the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(scenePath, true)
			if err != nil {
				return err
			}
			defer a.close()

			if reset {
				if err := a.engine.ClearMovementHistory(tokenID); err != nil {
					return err
				}
			}
			history, err := a.engine.MovementHistory(tokenID)
			if err != nil {
				return err
			}
			var distance, cost float64
			for _, w := range history {
				distance += w.Distance
				cost += w.Cost
			}
			return writeJSON(map[string]any{
				"tokenId":   tokenID,
				"distance":  distance,
				"cost":      core.Finite(cost),
				"waypoints": core.FiniteCosts(history),
			})
		},
	}

	cmd.Flags().BoolVar(&reset, "clear", false, "clear the history first")
	return cmd
}

func buildBackupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backups [dir]",
		Short: "List SQLite dumps written by earlier sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := viper.GetString("logsDir")
			if len(args) > 0 {
				dir = args[0]
			}
			paths, err := database.GetBackupDBPaths(dir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}

// parseWaypoints reads a JSON array whose items are either [x, y] pairs or
// waypoint objects. A leading @ names a file holding the array.
func parseWaypoints(arg string) ([]core.WaypointInput, error) {
	data := []byte(arg)
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		data = b
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("waypoints must be a JSON array: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("no waypoints given")
	}

	out := make([]core.WaypointInput, 0, len(items))
	for i, raw := range items {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var xy [2]int
			if err := json.Unmarshal(raw, &xy); err != nil {
				return nil, fmt.Errorf("waypoint %d: %w", i, err)
			}
			out = append(out, core.At(xy[0], xy[1]))
			continue
		}
		var in core.WaypointInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
