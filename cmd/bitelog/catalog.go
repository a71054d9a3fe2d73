package bitelog

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/provider/openfoodfacts"
	"github.com/saadjs/bitelog/internal/service"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the food catalog",
}

var (
	catalogBrand       string
	catalogProduct     string
	catalogPortionSize float64
	catalogPortionUnit string
	catalogCalories    float64
	catalogProtein     float64
	catalogFat         float64
	catalogNetCarbs    float64
	catalogFiber       float64
	catalogReuse       bool

	catalogQuery  string
	catalogOffset int
	catalogLimit  int
	catalogAll    bool

	catalogUsageDecrement bool

	lookupSave    bool
	lookupSearch  bool
	lookupLimit   int
	lookupBaseURL string
)

func catalogInputFromFlags() service.CatalogInput {
	return service.CatalogInput{
		Brand:       catalogBrand,
		Product:     catalogProduct,
		PortionSize: catalogPortionSize,
		PortionUnit: catalogPortionUnit,
		Calories:    catalogCalories,
		ProteinG:    catalogProtein,
		FatG:        catalogFat,
		NetCarbsG:   catalogNetCarbs,
		FiberG:      catalogFiber,
	}
}

var catalogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a catalog entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := catalogInputFromFlags()
		return withDB(func(sqldb *sql.DB) error {
			if catalogReuse {
				entry, created, err := service.FindOrCreateCatalogEntry(sqldb, in)
				if err != nil {
					return err
				}
				if !created {
					fmt.Fprintf(cmd.OutOrStdout(), "Reused catalog entry %d\n", entry.ID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added catalog entry %d\n", entry.ID)
				return nil
			}
			entry, err := service.CreateCatalogEntry(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added catalog entry %d\n", entry.ID)
			return nil
		})
	},
}

var catalogAddFromLogCmd = &cobra.Command{
	Use:   "add-from-log <log-id>",
	Short: "Save a log entry's nutrition snapshot to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logID, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			e, err := service.LogEntryByID(sqldb, logID)
			if err != nil {
				return err
			}
			entry, created, err := service.FindOrCreateCatalogEntry(sqldb, service.CatalogInputFromSnapshot(e.Nutrition()))
			if err != nil {
				return err
			}
			verb := "Reused"
			if created {
				verb = "Added"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s catalog entry %d from log entry %d\n", verb, entry.ID, logID)
			return nil
		})
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Search the catalog, most used first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "ID\tBRAND\tPRODUCT\tPORTION\tKCAL\tP\tC\tF\tUSES\tLAST USED")
			if catalogAll {
				for item, err := range service.CatalogSearchSeq(sqldb, catalogQuery, catalogLimit) {
					if err != nil {
						return err
					}
					printCatalogRow(out, item)
				}
				return nil
			}
			items, err := service.SearchCatalog(sqldb, service.CatalogQuery{Query: catalogQuery, Offset: catalogOffset, Limit: catalogLimit})
			if err != nil {
				return err
			}
			for _, item := range items {
				printCatalogRow(out, item)
			}
			return nil
		})
	},
}

func printCatalogRow(w io.Writer, c model.CatalogEntry) {
	lastUsed := "-"
	if c.LastUsedAt != nil {
		lastUsed = c.LastUsedAt.Format("2006-01-02")
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%g %s\t%.0f\t%.1f\t%.1f\t%.1f\t%d\t%s\n",
		c.ID, c.Brand, c.Product, c.PortionSize, c.PortionUnit, c.Calories, c.ProteinG, c.CarbsG(), c.FatG, c.UsageCount, lastUsed)
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("catalog id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			c, err := service.CatalogEntryByID(sqldb, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %d\n", c.ID)
			fmt.Fprintf(out, "Brand: %s\n", c.Brand)
			fmt.Fprintf(out, "Product: %s\n", c.Product)
			fmt.Fprintf(out, "Portion: %g %s\n", c.PortionSize, c.PortionUnit)
			fmt.Fprintf(out, "Calories: %g\n", c.Calories)
			fmt.Fprintf(out, "Protein: %.1f\nFat: %.1f\nCarbs: %.1f (net %.1f, fiber %.1f)\n", c.ProteinG, c.FatG, c.CarbsG(), c.NetCarbsG, c.FiberG)
			fmt.Fprintf(out, "Uses: %d\n", c.UsageCount)
			if c.LastUsedAt != nil {
				fmt.Fprintf(out, "Last used: %s\n", c.LastUsedAt.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var catalogUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a catalog entry; linked log entries follow the new values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("catalog id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			current, err := service.CatalogEntryByID(sqldb, id)
			if err != nil {
				return err
			}
			in := service.CatalogInputFromSnapshot(current.Snapshot())
			flags := cmd.Flags()
			if flags.Changed("brand") {
				in.Brand = catalogBrand
			}
			if flags.Changed("product") {
				in.Product = catalogProduct
			}
			if flags.Changed("portion-size") {
				in.PortionSize = catalogPortionSize
			}
			if flags.Changed("portion-unit") {
				in.PortionUnit = catalogPortionUnit
			}
			if flags.Changed("calories") {
				in.Calories = catalogCalories
			}
			if flags.Changed("protein") {
				in.ProteinG = catalogProtein
			}
			if flags.Changed("fat") {
				in.FatG = catalogFat
			}
			if flags.Changed("net-carbs") {
				in.NetCarbsG = catalogNetCarbs
			}
			if flags.Changed("fiber") {
				in.FiberG = catalogFiber
			}
			if _, err := service.UpdateCatalogEntry(sqldb, id, in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated catalog entry %d\n", id)
			return nil
		})
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a catalog entry; log entries keep a snapshot of its values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("catalog id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			report, err := service.SafeDeleteCatalogEntry(sqldb, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted catalog entry %d (%s); detached %d log entries\n", id, report.Product, report.Detached)
			return nil
		})
	},
}

var catalogUsageCmd = &cobra.Command{
	Use:   "usage <id>",
	Short: "Adjust a catalog entry's usage counter by one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("catalog id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if catalogUsageDecrement {
				err = service.DecrementUsage(sqldb, id)
			} else {
				err = service.IncrementUsage(sqldb, id)
			}
			if err != nil {
				return err
			}
			c, err := service.CatalogEntryByID(sqldb, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog entry %d uses: %d\n", id, c.UsageCount)
			return nil
		})
	},
}

var catalogLookupCmd = &cobra.Command{
	Use:   "lookup <barcode|query>",
	Short: "Look up a packaged food on Open Food Facts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &openfoodfacts.Client{BaseURL: lookupBaseURL}
		var products []openfoodfacts.Product
		if lookupSearch {
			found, err := client.SearchProducts(cmd.Context(), args[0], lookupLimit)
			if err != nil {
				return err
			}
			products = found
		} else {
			p, err := client.LookupBarcode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			products = []openfoodfacts.Product{p}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "CODE\tBRAND\tPRODUCT\tPORTION\tKCAL\tP\tC\tF")
		for _, p := range products {
			fmt.Fprintf(out, "%s\t%s\t%s\t%g %s\t%.0f\t%.1f\t%.1f\t%.1f\n",
				p.Code, p.Brand, p.Name, p.PortionSize, p.PortionUnit, p.Calories, p.ProteinG, p.CarbsG, p.FatG)
		}
		if !lookupSave {
			return nil
		}
		if len(products) != 1 {
			return fmt.Errorf("--save needs exactly one product, got %d; narrow the query or use a barcode", len(products))
		}
		p := products[0]
		return withDB(func(sqldb *sql.DB) error {
			entry, created, err := service.FindOrCreateCatalogEntry(sqldb, service.CatalogInput{
				Brand:       p.Brand,
				Product:     p.Name,
				PortionSize: p.PortionSize,
				PortionUnit: p.PortionUnit,
				Calories:    p.Calories,
				ProteinG:    p.ProteinG,
				FatG:        p.FatG,
				NetCarbsG:   p.NetCarbsG(),
				FiberG:      p.FiberG,
			})
			if err != nil {
				return err
			}
			verb := "Reused"
			if created {
				verb = "Added"
			}
			fmt.Fprintf(out, "%s catalog entry %d\n", verb, entry.ID)
			return nil
		})
	},
}

func addCatalogFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&catalogBrand, "brand", "", "Brand name")
	cmd.Flags().StringVar(&catalogProduct, "product", "", "Product name")
	cmd.Flags().Float64Var(&catalogPortionSize, "portion-size", 1, "Portion size")
	cmd.Flags().StringVar(&catalogPortionUnit, "portion-unit", "serving", "Portion unit")
	cmd.Flags().Float64Var(&catalogCalories, "calories", 0, "Calories per portion")
	cmd.Flags().Float64Var(&catalogProtein, "protein", 0, "Protein grams per portion")
	cmd.Flags().Float64Var(&catalogFat, "fat", 0, "Fat grams per portion")
	cmd.Flags().Float64Var(&catalogNetCarbs, "net-carbs", 0, "Net carbs (sugar) grams per portion")
	cmd.Flags().Float64Var(&catalogFiber, "fiber", 0, "Dietary fiber grams per portion")
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogAddCmd, catalogAddFromLogCmd, catalogListCmd, catalogShowCmd, catalogUpdateCmd, catalogDeleteCmd, catalogUsageCmd, catalogLookupCmd)

	addCatalogFieldFlags(catalogAddCmd)
	catalogAddCmd.Flags().BoolVar(&catalogReuse, "reuse", false, "Return the existing entry instead of failing on a duplicate")
	_ = catalogAddCmd.MarkFlagRequired("product")
	addCatalogFieldFlags(catalogUpdateCmd)

	catalogListCmd.Flags().StringVar(&catalogQuery, "query", "", "Substring of brand or product (case-insensitive)")
	catalogListCmd.Flags().IntVar(&catalogOffset, "offset", 0, "Rows to skip")
	catalogListCmd.Flags().IntVar(&catalogLimit, "limit", 50, "Page size")
	catalogListCmd.Flags().BoolVar(&catalogAll, "all", false, "Walk every page")

	catalogUsageCmd.Flags().BoolVar(&catalogUsageDecrement, "decrement", false, "Decrement instead of increment")

	catalogLookupCmd.Flags().BoolVar(&lookupSave, "save", false, "Save the product to the catalog")
	catalogLookupCmd.Flags().BoolVar(&lookupSearch, "search", false, "Treat the argument as a text query instead of a barcode")
	catalogLookupCmd.Flags().IntVar(&lookupLimit, "limit", 10, "Maximum search results")
	catalogLookupCmd.Flags().StringVar(&lookupBaseURL, "base-url", "", "Open Food Facts base URL")
	_ = catalogLookupCmd.Flags().MarkHidden("base-url")
}
