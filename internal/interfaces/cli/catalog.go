package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/LumiGrid/internal/application/lighting"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LumiGrid/pkg/errors"
)

// NewCatalogCmd groups fixture catalog commands.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the fixture model catalog",
		Long:  "List and bulk-import fixture models (PPF, wattage, efficacy, beam angle) used to resolve modelId references.",
	}
	cmd.AddCommand(newCatalogListCmd(), newCatalogImportCmd())
	return cmd
}

func newCatalogListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fixture models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, cc *CLIContext, svc lighting.Service) error {
				list, err := svc.ListFixtureModels(ctx, limit, offset)
				if err != nil {
					return err
				}
				return PrintResult(cmd, cc.OutputFormat, list, func(w io.Writer) error {
					return renderModelTable(w, list)
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum models to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "models to skip")
	return cmd
}

func renderModelTable(w io.Writer, list *lighting.FixtureModelList) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Manufacturer", "Model", "PPF", "Watts", "Efficacy", "Beam"})
	table.SetAutoFormatHeaders(false)
	for _, m := range list.Models {
		table.Append([]string{
			truncateString(m.ID, 36),
			truncateString(m.Manufacturer, 24),
			truncateString(m.Model, 30),
			formatOptional(m.PPF, "%.0f"),
			formatOptional(m.Wattage, "%.0f"),
			formatOptional(m.Efficacy, "%.2f"),
			formatOptional(m.BeamAngle, "%.0f°"),
		})
	}
	table.Render()
	_, err := fmt.Fprintf(w, "Showing %d of %d models\n", len(list.Models), list.Total)
	return err
}

func formatOptional(v float64, format string) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

// catalogFile accepts either a bare list or a {models: [...]} document.
type catalogFile struct {
	Models []lighting.FixtureModelInput `yaml:"models"`
}

func loadCatalogFile(path string) ([]lighting.FixtureModelInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read catalog file")
	}

	var doc catalogFile
	if err := yaml.Unmarshal(raw, &doc); err == nil && len(doc.Models) > 0 {
		return doc.Models, nil
	}
	var models []lighting.FixtureModelInput
	if err := yaml.Unmarshal(raw, &models); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid catalog file").WithDetail(path)
	}
	if len(models) == 0 {
		return nil, errors.New(errors.ErrCodeBadRequest, "catalog file contains no models").WithDetail(path)
	}
	return models, nil
}

func newCatalogImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-import fixture models from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := loadCatalogFile(file)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, cc *CLIContext, svc lighting.Service) error {
				res, err := svc.ImportFixtureModels(ctx, models)
				if err != nil {
					return err
				}
				cc.Logger.Info("fixture models imported", logging.Int64("count", res.Imported))
				return PrintResult(cmd, cc.OutputFormat, res, func(io.Writer) error {
					PrintSuccess(cmd, fmt.Sprintf("imported %d of %d fixture models", res.Imported, len(models)))
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog file [REQUIRED]")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
