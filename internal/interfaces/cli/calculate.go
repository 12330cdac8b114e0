package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/domain/photometry"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

const defaultMaxColumns = 12

type calculateOptions struct {
	scene       string
	resolution  int
	photoperiod float64
	adaptive    bool
	maxLevel    int
	contourStep float64
	offline     bool
	maxColumns  int
}

// NewCalculateCmd runs one calculation from a scene file.
func NewCalculateCmd() *cobra.Command {
	o := &calculateOptions{}

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Compute a PPFD/DLI grid from a scene file",
		Long: "Compute a PPFD/DLI grid for the room and fixtures described in a YAML\n" +
			"or JSON scene file. Offline runs use only the local engine; with\n" +
			"--offline=false, catalog models resolve and the run is recorded in the\n" +
			"configured backends.",
		Example: "  lumigrid calculate --scene tent.yaml\n" +
			"  lumigrid calculate --scene tent.yaml --resolution 40 --adaptive -o table",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadScene(o.scene)
			if err != nil {
				return err
			}
			applyOverrides(cmd, o, req)

			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			run := func(ctx context.Context, cc *CLIContext, svc lighting.Service) error {
				res, err := svc.Calculate(ctx, req)
				if err != nil {
					return err
				}
				return PrintResult(cmd, cc.OutputFormat, res, func(w io.Writer) error {
					if cc.OutputFormat == FormatTable {
						return renderGridTable(w, res.Grid, o.maxColumns)
					}
					return renderSummary(w, res)
				})
			}
			if !o.offline {
				return withService(cmd, run)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cc.Timeout)
			defer cancel()
			svc := lighting.NewService(lighting.Deps{Engine: cc.Config.Engine, Logger: cc.Logger})
			return run(ctx, cc, svc)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.scene, "scene", "s", "", "scene file (YAML or JSON) [REQUIRED]")
	f.IntVarP(&o.resolution, "resolution", "r", 0, "grid divisions per side (overrides the scene)")
	f.Float64Var(&o.photoperiod, "photoperiod", 0, "photoperiod in hours for DLI (overrides the scene)")
	f.BoolVar(&o.adaptive, "adaptive", false, "enable adaptive subdivision")
	f.IntVar(&o.maxLevel, "max-level", 0, "maximum subdivision depth")
	f.Float64Var(&o.contourStep, "contour-step", 0, "PPFD spacing between contour lines")
	f.BoolVar(&o.offline, "offline", true, "run without connecting to configured backends")
	f.IntVar(&o.maxColumns, "max-columns", defaultMaxColumns, "column limit for table output")
	_ = cmd.MarkFlagRequired("scene")

	return cmd
}

// loadScene decodes a scene file. "-" reads stdin.
func loadScene(path string) (*lighting.CalculationRequest, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read scene file")
	}

	req := &lighting.CalculationRequest{}
	if err := yaml.Unmarshal(raw, req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid scene file").WithDetail(path)
	}
	return req, nil
}

// applyOverrides copies explicitly set flags onto req.
func applyOverrides(cmd *cobra.Command, o *calculateOptions, req *lighting.CalculationRequest) {
	f := cmd.Flags()
	if f.Changed("resolution") {
		req.Resolution = o.resolution
	}
	if f.Changed("photoperiod") {
		h := o.photoperiod
		req.PhotoperiodHours = &h
	}
	if !f.Changed("adaptive") && !f.Changed("max-level") && !f.Changed("contour-step") {
		return
	}
	if req.Options == nil {
		req.Options = &lighting.OptionsInput{}
	}
	if f.Changed("adaptive") {
		a := o.adaptive
		req.Options.AdaptiveSubdivision = &a
	}
	if f.Changed("max-level") {
		l := o.maxLevel
		req.Options.MaxSubdivisionLevel = &l
	}
	if f.Changed("contour-step") {
		s := o.contourStep
		req.Options.ContourStep = &s
	}
}

// bandColors matches the contour palette, blue to red.
var bandColors = map[string]color.Attribute{
	"#0000ff": color.FgBlue,
	"#00ffff": color.FgCyan,
	"#00ff00": color.FgGreen,
	"#ffff00": color.FgYellow,
	"#ff0000": color.FgRed,
}

func bandString(hex, s string) string {
	if attr, ok := bandColors[hex]; ok {
		return color.New(attr).Sprint(s)
	}
	return s
}

func renderSummary(w io.Writer, res *lighting.CalculationResult) error {
	g := res.Grid
	st := g.Statistics
	bold := color.New(color.Bold).SprintFunc()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", bold("Run"), res.RunID)
	if res.Cached {
		b.WriteString("  (served from cache)\n")
	}
	fmt.Fprintf(&b, "%s %.2f m x %.2f m, resolution %d (effective %d, depth %d, %d flagged cells)\n",
		bold("Grid"), g.Width, g.Length, g.BaseResolution, g.EffectiveResolution, g.RefinementDepth, g.FlaggedCells)
	fmt.Fprintf(&b, "%s min %.1f  avg %.1f  max %.1f umol/m2/s\n", bold("PPFD"), st.Min, st.Average, st.Max)
	fmt.Fprintf(&b, "%s  min %.2f  avg %.2f  max %.2f mol/m2/d\n", bold("DLI"), st.MinDLI, st.AverageDLI, st.MaxDLI)
	fmt.Fprintf(&b, "%s %s  %s %.1f%%  %s %d\n",
		bold("Uniformity"), colorUniformity(st.Uniformity), bold("Coverage"), st.Coverage, bold("Points"), st.PointCount)

	if len(g.Contours) > 0 {
		fmt.Fprintf(&b, "%s\n", bold("Contours"))
		for _, c := range g.Contours {
			fmt.Fprintf(&b, "  %s %7.1f  %d segments\n", bandString(c.Color, "##"), c.Level, len(c.Segments))
		}
	}
	if len(g.Warnings) > 0 {
		fmt.Fprintf(&b, "%s\n", color.YellowString("Warnings"))
		for _, warn := range g.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warn)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func colorUniformity(u float64) string {
	s := fmt.Sprintf("%.3f", u)
	switch {
	case u >= 0.7:
		return color.GreenString(s)
	case u >= 0.5:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// renderGridTable prints base-lattice PPFD with rows from the far wall
// down, thinning columns and rows to at most maxColumns.
func renderGridTable(w io.Writer, g *photometry.PhotometricGrid, maxColumns int) error {
	if g == nil || g.BaseResolution <= 0 {
		return nil
	}
	if maxColumns < 2 {
		maxColumns = 2
	}
	base := g.BasePoints()
	stride := g.BaseResolution + 1
	step := int(math.Ceil(float64(stride) / float64(maxColumns)))
	lo, hi := g.Statistics.Min, g.Statistics.Max

	var indices []int
	for i := 0; i < stride; i += step {
		indices = append(indices, i)
	}
	if indices[len(indices)-1] != stride-1 {
		indices = append(indices, stride-1)
	}

	header := []string{"y \\ x"}
	for _, col := range indices {
		header = append(header, fmt.Sprintf("%.2f", base[col].X))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for r := len(indices) - 1; r >= 0; r-- {
		row := indices[r]
		cells := []string{fmt.Sprintf("%.2f", base[row*stride].Y)}
		for _, col := range indices {
			p := base[row*stride+col]
			cells = append(cells, bandString(photometry.ContourColor(p.PPFD, lo, hi), fmt.Sprintf("%.1f", p.PPFD)))
		}
		table.Append(cells)
	}
	table.Render()

	_, err := fmt.Fprintf(w, "PPFD umol/m2/s, avg %.1f, uniformity %.3f\n", g.Statistics.Average, g.Statistics.Uniformity)
	return err
}
