// Package selectors provides the DOM selector and label catalogue for the video player.
package selectors

import (
	"embed"
	"fmt"
	"regexp"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsFS embed.FS

// Selectors contains every selector and label the automation relies on.
type Selectors struct {
	Video       string `yaml:"video"`
	PlayerReady string `yaml:"player_ready"`
	AdShowing   string `yaml:"ad_showing"`
	AdClass     string `yaml:"ad_class"`

	SettingsButton string `yaml:"settings_button"`
	SettingsMenu   string `yaml:"settings_menu"`
	MenuItem       string `yaml:"menu_item"`

	AudioTrackLabels []string `yaml:"audio_track_labels"`
	OriginalLabels   []string `yaml:"original_labels"`

	HeaderContainer string `yaml:"header_container"`
	SearchBox       string `yaml:"search_box"`
	EndContainer    string `yaml:"end_container"`
	MobileRootClass string `yaml:"mobile_root_class"`

	NavigationEvents []string `yaml:"navigation_events"`
	MobileUserAgent  string   `yaml:"mobile_user_agent"`

	mobileUA *regexp.Regexp
}

var (
	instance *Selectors
	once     sync.Once
	loadErr  error
)

// Get returns the singleton embedded Selectors instance.
func Get() *Selectors {
	once.Do(func() {
		instance, loadErr = load()
		if loadErr != nil {
			log.Error().Err(loadErr).Msg("Failed to load selectors, using defaults")
			instance = defaultSelectors()
		}
	})
	return instance
}

// load reads selectors from the embedded YAML file.
func load() (*Selectors, error) {
	data, err := defaultSelectorsFS.ReadFile("selectors.yaml")
	if err != nil {
		return nil, err
	}

	var s Selectors
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.compile(); err != nil {
		return nil, err
	}

	log.Debug().
		Int("audio_track_labels", len(s.AudioTrackLabels)).
		Int("original_labels", len(s.OriginalLabels)).
		Int("navigation_events", len(s.NavigationEvents)).
		Msg("Selectors loaded")

	return &s, nil
}

// MatchesMobileUserAgent reports whether ua looks like a phone or tablet browser.
func (s *Selectors) MatchesMobileUserAgent(ua string) bool {
	if s.mobileUA == nil || ua == "" {
		return false
	}
	return s.mobileUA.MatchString(ua)
}

func (s *Selectors) compile() error {
	if s.MobileUserAgent == "" {
		s.mobileUA = nil
		return nil
	}
	re, err := regexp.Compile(s.MobileUserAgent)
	if err != nil {
		return fmt.Errorf("invalid mobile_user_agent pattern: %w", err)
	}
	s.mobileUA = re
	return nil
}

// defaultSelectors returns hardcoded fallback selectors.
func defaultSelectors() *Selectors {
	s := &Selectors{
		Video:            "video",
		PlayerReady:      ".html5-video-player",
		AdShowing:        ".html5-video-player.ad-showing",
		AdClass:          "ad-showing",
		SettingsButton:   ".ytp-settings-button",
		SettingsMenu:     ".ytp-popup.ytp-settings-menu",
		MenuItem:         ".ytp-menuitem",
		AudioTrackLabels: []string{"audiotrack", "audio track"},
		OriginalLabels:   []string{"original"},
		HeaderContainer:  "#masthead-container, ytm-mobile-topbar-renderer, header.mobile-topbar-header",
		SearchBox:        "ytd-searchbox, ytm-search-box, #search-form",
		EndContainer:     "#center, #end, .mobile-topbar-header-content",
		MobileRootClass:  "mobile",
		NavigationEvents: []string{"yt-navigate-finish", "state-navigateend"},
		MobileUserAgent:  "(?i)android|iphone|ipad|ipod|mobile|webos|blackberry|iemobile|opera mini",
	}
	_ = s.compile()
	return s
}
