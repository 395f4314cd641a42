package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/karatlabs/karat/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes the result
// to config.gen.yaml. The quote API key is never written to the file; it
// stays in the GOLDAPI_KEY environment variable.
func RunTUI() error {
	var (
		currency       string
		markupMode     string
		markupValueStr string
		updateInterval string
		stalenessStr   string
		catalogMode    string
		catalogBaseURL string
		httpAddr       string
		confirm        bool
	)

	// defaults
	currency = "GBP"
	markupMode = "percent"
	markupValueStr = "10"
	updateInterval = "6h"
	stalenessStr = "24h"
	httpAddr = ":8080"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("KARAT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Dynamic metal pricing for your catalog.\n"))

	// currency
	fmt.Println(stepStyle.Render("STEP 1: CURRENCY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pricing Currency").
				Description("ISO-4217 code (e.g. GBP, USD, EUR)").
				Value(&currency).
				Validate(func(s string) error {
					if len(s) != 3 {
						return fmt.Errorf("must be a 3-letter ISO code")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// markup
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("KARAT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MARKUP"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Markup Mode").
				Options(
					huh.NewOption("Percentage of metal cost", "percent"),
					huh.NewOption("Flat amount per item", "flat"),
				).
				Value(&markupMode),
			huh.NewInput().
				Title("Markup Value").
				Description("Percent (e.g. 10) or flat amount (e.g. 25.50)").
				Value(&markupValueStr).
				Validate(validateMarkupValue),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("KARAT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Update Interval").
				Description("How often prices refresh (e.g. 1h, 6h)").
				Value(&updateInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Staleness Threshold").
				Description("Snapshot age that degrades health to WARNING (e.g. 24h)").
				Value(&stalenessStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	// catalog
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("KARAT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: CATALOG"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Catalog Backend").
				Options(
					huh.NewOption("CMS API", "cms"),
					huh.NewOption("In-memory (simulation)", "memory"),
				).
				Value(&catalogMode),
		),
	).Run()
	if err != nil {
		return err
	}

	if catalogMode == "cms" {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("CMS Base URL").
					Description("e.g. https://cms.example.com").
					Value(&catalogBaseURL).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("base URL cannot be empty")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// server
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("KARAT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: OPERATIONS SERVER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("e.g. :8080").
				Value(&httpAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("KARAT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Currency: %s\nMarkup: %s %s\nUpdate Interval: %s\nStaleness: %s\nCatalog: %s\nListen: %s\n",
		currency, markupValueStr, markupMode, updateInterval, stalenessStr, catalogMode, httpAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	interval, _ := time.ParseDuration(updateInterval)
	staleness, _ := time.ParseDuration(stalenessStr)

	cfgTmp := config.ConfigTmp{
		DefaultCurrency:    currency,
		StalenessThreshold: staleness,
		UpdateInterval:     interval,
		MarkupMode:         markupMode,
		MarkupValue:        markupValueStr,
		CatalogMode:        catalogMode,
		CatalogBaseURL:     catalogBaseURL,
		HTTPAddr:           httpAddr,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nRun with --config %s (remember to export GOLDAPI_KEY).", filename, filename)))
	return nil
}

func validateMarkupValue(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}
