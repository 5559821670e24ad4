/***************************************************************
 *
 * Copyright (C) 2025, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/
package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// simConfig shapes the generated traffic. Every key can be overridden
// through ULOGSIM_-prefixed environment variables, for example
// ULOGSIM_RESPONSE_WEIGHTS_RESPONSE_500.
type simConfig struct {
	ResponseWeights struct {
		Response200 int `mapstructure:"response_200"`
		Response400 int `mapstructure:"response_400"`
		Response500 int `mapstructure:"response_500"`
	} `mapstructure:"response_weights"`

	PathWeights struct {
		Test        int `mapstructure:"test"`
		Staging     int `mapstructure:"staging"`
		Development int `mapstructure:"development"`
	} `mapstructure:"path_weights"`
}

var simCfg simConfig

func loadSimConfig() error {
	v := viper.New()

	// Mostly-healthy traffic by default
	v.SetDefault("response_weights.response_200", 6)
	v.SetDefault("response_weights.response_400", 2)
	v.SetDefault("response_weights.response_500", 1)
	v.SetDefault("path_weights.test", 3)
	v.SetDefault("path_weights.staging", 2)
	v.SetDefault("path_weights.development", 1)

	v.SetEnvPrefix("ULOGSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&simCfg); err != nil {
		return err
	}

	slog.Debug("Loaded simulator configuration",
		slog.Group("response_weights",
			slog.Int("response_200", simCfg.ResponseWeights.Response200),
			slog.Int("response_400", simCfg.ResponseWeights.Response400),
			slog.Int("response_500", simCfg.ResponseWeights.Response500),
		),
		slog.Group("path_weights",
			slog.Int("test", simCfg.PathWeights.Test),
			slog.Int("staging", simCfg.PathWeights.Staging),
			slog.Int("development", simCfg.PathWeights.Development),
		),
	)
	return nil
}
