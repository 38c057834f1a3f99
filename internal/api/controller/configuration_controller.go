package controller

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/bassista/court_watch/internal/config"
)

// ConfigurationResponse is the non-secret part of the configuration.
// DSNs, headers and API keys are never exposed, and the feed URL loses
// its userinfo, query and fragment.
type ConfigurationResponse struct {
	FeedSource       string `json:"feedSource"`
	FeedURL          string `json:"feedUrl,omitempty"`
	FeedWatch        bool   `json:"feedWatch"`
	StoreType        string `json:"storeType"`
	StoreDriver      string `json:"storeDriver,omitempty"`
	Filter           string `json:"filter,omitempty"`
	Schedule         string `json:"schedule"`
	ScheduleTZ       string `json:"scheduleTz"`
	SchedulerEnabled bool   `json:"schedulerEnabled"`
	TriggerInterval  string `json:"triggerInterval"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

// NewConfigurationController creates a new ConfigurationController.
func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{
		config: cfg,
	}
}

// GetConfiguration returns the effective watch configuration.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	cfg := cc.config
	response := ConfigurationResponse{
		FeedSource:       cfg.Feed.Source,
		StoreType:        cfg.Store.Type,
		Filter:           cfg.Notify.Filter,
		Schedule:         cfg.Misc.Schedule,
		ScheduleTZ:       cfg.Misc.ScheduleTZ,
		SchedulerEnabled: cfg.Server.SchedulerEnabled,
		TriggerInterval:  cfg.Server.TriggerInterval.String(),
	}
	if cfg.Feed.Source == "file" {
		response.FeedWatch = cfg.Feed.Watch
	} else {
		response.FeedURL = redactURL(cfg.Feed.URL)
	}
	if cfg.Store.Type != "file" {
		response.StoreDriver = cfg.Store.Driver
	}
	c.JSON(http.StatusOK, response)
}

// redactURL keeps scheme, host and path only. Unparseable input is dropped.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
