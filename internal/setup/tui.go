// Package setup is the interactive terminal wizard that writes a bot config file.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/trendbot/config"
	"github.com/vadiminshakov/trendbot/internal/domain"
)

// DefaultOutput is where the wizard writes the generated config.
const DefaultOutput = "config.gen.yaml"

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

// answers holds raw wizard input before validation.
type answers struct {
	platform         string
	pair             string
	candleInterval   string
	shortWindow      string
	longWindow       string
	riskFraction     string
	stopLossFraction string
	minNotional      string
	pollInterval     string
}

func defaultAnswers() answers {
	return answers{
		platform:         config.PlatformSimulate,
		pair:             "BTC_USDT",
		candleInterval:   "1h",
		shortWindow:      "5",
		longWindow:       "10",
		riskFraction:     "0.02",
		stopLossFraction: "0.05",
		minNotional:      "10",
		pollInterval:     "20s",
	}
}

// config validates the answers the same way a loaded file is validated.
func (a answers) config() (config.Config, error) {
	short, err := strconv.Atoi(a.shortWindow)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "short window must be an integer")
	}
	long, err := strconv.Atoi(a.longWindow)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "long window must be an integer")
	}
	poll, err := time.ParseDuration(a.pollInterval)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "poll interval must be a duration")
	}

	return config.ConfigTmp{
		Platform:         a.platform,
		Pair:             a.pair,
		CandleInterval:   a.candleInterval,
		ShortWindow:      short,
		LongWindow:       long,
		PollInterval:     poll,
		RiskFraction:     a.riskFraction,
		StopLossFraction: a.stopLossFraction,
		MinOrderNotional: a.minNotional,
	}.Config()
}

// writeConfig stores conf as YAML at path.
func writeConfig(conf config.Config, path string) error {
	data, err := yaml.Marshal(conf.Tmp())
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func clearScreen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRENDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	if path == "" {
		path = DefaultOutput
	}
	a := defaultAnswers()
	var confirm bool

	clearScreen("STEP 1: PLATFORM")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("API keys are read from the environment, never from this file.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
					huh.NewOption("Simulation", config.PlatformSimulate),
				).
				Value(&a.platform),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 2: ASSET")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&a.pair).
				Validate(validatePair),
			huh.NewInput().
				Title("Candle Interval").
				Description("Exchange interval (e.g. 15m, 1h, 4h, 1d)").
				Value(&a.candleInterval),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 3: SIGNAL")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Short EMA Window").
				Value(&a.shortWindow).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Long EMA Window").
				Description("Must be greater than the short window").
				Value(&a.longWindow).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 4: RISK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Risk Fraction").
				Description("Share of free quote balance per trade (e.g. 0.02)").
				Value(&a.riskFraction).
				Validate(validateFraction),
			huh.NewInput().
				Title("Stop-Loss Fraction").
				Description("Stop distance below the fill price (e.g. 0.05)").
				Value(&a.stopLossFraction).
				Validate(validateFraction),
			huh.NewInput().
				Title("Minimum Order Notional").
				Description("Quote currency (e.g. 10)").
				Value(&a.minNotional).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 20s, 1m, 5m)").
				Value(&a.pollInterval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	conf, err := a.config()
	if err != nil {
		return err
	}

	clearScreen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nCandles: %s\nEMA: %d/%d\nRisk: %s\nStop: %s\nInterval: %s\n",
		conf.Platform, conf.Pair, conf.CandleInterval, conf.ShortWindow, conf.LongWindow,
		conf.Risk.RiskFraction, conf.StopLossFraction, conf.PollInterval,
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
		return errors.New("setup cancelled by user")
	}

	if err := writeConfig(conf, path); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

func validatePair(s string) error {
	if s == "" {
		return errors.New("pair cannot be empty")
	}
	_, err := domain.ParsePair(s)
	return err
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return errors.New("must be a whole number >= 1")
	}
	return nil
}

func validateFraction(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if !d.IsPositive() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("must be between 0 and 1")
	}
	return nil
}

func validateNonNegative(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}
