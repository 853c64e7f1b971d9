package main

import (
	"fmt"
	"strings"
)

type Theme struct {
	Name      string
	BG        string
	HeaderBG  string
	HeaderTxt string
	Title     string
	Artist    string
	Accent    string
	Dim       string
	Progress  string
	ProgBG    string
	ArtBorder string
}

var (
	ThemeClassic = Theme{
		Name:      "Classic",
		BG:        "#B8B8B8",
		HeaderBG:  "#A0A0A0",
		HeaderTxt: "#000000",
		Title:     "#000000",
		Artist:    "#202020",
		Accent:    "#4A90E2",
		Dim:       "#606060",
		Progress:  "#4A90E2",
		ProgBG:    "#909090",
		ArtBorder: "#808080",
	}

	ThemeDark = Theme{
		Name:      "Dark",
		BG:        "#1C1C1C",
		HeaderBG:  "#0A0A0A",
		HeaderTxt: "#FFFFFF",
		Title:     "#FFFFFF",
		Artist:    "#CCCCCC",
		Accent:    "#1DB954",
		Dim:       "#777777",
		Progress:  "#1DB954",
		ProgBG:    "#444444",
		ArtBorder: "#333333",
	}

	ThemeNord = Theme{
		Name:      "Nord",
		BG:        "#2E3440",
		HeaderBG:  "#3B4252",
		HeaderTxt: "#ECEFF4",
		Title:     "#ECEFF4",
		Artist:    "#D8DEE9",
		Accent:    "#88C0D0",
		Dim:       "#4C566A",
		Progress:  "#88C0D0",
		ProgBG:    "#434C5E",
		ArtBorder: "#4C566A",
	}

	ThemeGruvbox = Theme{
		Name:      "Gruvbox",
		BG:        "#282828",
		HeaderBG:  "#1D2021",
		HeaderTxt: "#EBDBB2",
		Title:     "#FBF1C7",
		Artist:    "#EBDBB2",
		Accent:    "#FABD2F",
		Dim:       "#7C6F64",
		Progress:  "#83A598",
		ProgBG:    "#3C3836",
		ArtBorder: "#504945",
	}
)

// Fault screen colours do not follow the theme
const (
	FAULT_BG  = "#B00020"
	FAULT_TXT = "#FFFFFF"
)

// AllThemes returns all available themes in order
func AllThemes() []Theme {
	return []Theme{
		ThemeClassic,
		ThemeDark,
		ThemeNord,
		ThemeGruvbox,
	}
}

// themeByName looks a theme up case-insensitively, falling back to Dark.
func themeByName(name string) Theme {
	for _, t := range AllThemes() {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	if name != "" {
		logMsg(fmt.Sprintf("WARNING: Unknown theme %q, using %s", name, ThemeDark.Name))
	}
	return ThemeDark
}

// setTheme switches the theme and saves it as the preference
func (app *SpotiDeck) setTheme(theme Theme) {
	app.Theme = theme
	if app.Panel != nil {
		app.Panel.setTheme(theme)
	}

	app.Settings.Theme = theme.Name
	if err := app.Settings.save(); err != nil {
		logMsg(fmt.Sprintf("WARNING: Failed to save theme preference: %v", err))
	}
	logMsg(fmt.Sprintf("INFO: Theme set to %s", theme.Name))
}
