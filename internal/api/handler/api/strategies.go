package api

import (
	"net/http"

	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/strategy"
)

// StrategyInfo describes a registered strategy.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Lookback    int    `json:"lookback"`
}

// ListStrategies returns the registered strategies with their default settings.
func ListStrategies(reg *strategy.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := make([]StrategyInfo, 0)
		for _, name := range reg.Names() {
			s, err := reg.New(name, strategy.Config{})
			if err != nil {
				continue
			}
			infos = append(infos, StrategyInfo{
				Name:        s.Name(),
				Description: s.Description(),
				Lookback:    s.Lookback(),
			})
		}
		response.JSON(w, http.StatusOK, infos)
	}
}
