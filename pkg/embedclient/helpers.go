// Copyright 2025 The ACE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedclient

import (
	"net/http"
	"time"

	"github.com/hungson175/ace/pkg/httpclient"
)

func newHTTPClient(cfg Config, parser httpclient.HeaderParser) *httpclient.Client {
	opts := []httpclient.Option{httpclient.WithHeaderParser(parser)}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, httpclient.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.RetryDelaySeconds > 0 {
		opts = append(opts, httpclient.WithBaseDelay(time.Duration(cfg.RetryDelaySeconds)*time.Second))
	}
	return httpclient.New(opts...)
}
