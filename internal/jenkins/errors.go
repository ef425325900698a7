// Copyright 2025 Tom Barlow
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

package jenkins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	checkserrors "github.com/tombee/checks-jenkins/pkg/errors"
)

// ParseError converts a non-2xx Jenkins response into a CIError. Jenkins
// answers with either a JSON body or an HTML error page.
func ParseError(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	rawURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		rawURL = resp.Request.URL.String()
	}

	ciErr := &checkserrors.CIError{
		Server:     serverOf(rawURL),
		URL:        rawURL,
		StatusCode: resp.StatusCode,
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	trimmed := strings.TrimSpace(string(body))

	if strings.Contains(contentType, "text/html") ||
		strings.HasPrefix(trimmed, "<!DOCTYPE") ||
		strings.HasPrefix(trimmed, "<html") {
		ciErr.IsHTML = true
		ciErr.Message = extractHTMLTitle(string(body))
		if ciErr.Message == "" {
			ciErr.Message = defaultMessage(resp.StatusCode)
		}
		return ciErr
	}

	if len(body) > 0 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Message != "" {
				ciErr.Message = errResp.Message
			} else if errResp.Error != "" {
				ciErr.Message = errResp.Error
			}
		}
	}

	if ciErr.Message == "" {
		ciErr.Message = defaultMessage(resp.StatusCode)
	}

	return ciErr
}

// extractHTMLTitle pulls the <title> out of a Jenkins error page.
func extractHTMLTitle(html string) string {
	lower := strings.ToLower(html)

	start := strings.Index(lower, "<title>")
	if start == -1 {
		return ""
	}
	start += len("<title>")

	end := strings.Index(lower[start:], "</title>")
	if end == -1 {
		return ""
	}

	title := strings.TrimSpace(html[start : start+end])
	title = strings.TrimPrefix(title, "Error ")
	title = strings.TrimPrefix(title, "Jenkins - ")

	return title
}

func defaultMessage(statusCode int) string {
	switch statusCode {
	case 400:
		return "Bad request"
	case 401:
		return "Unauthorized - check the CI credentials"
	case 403:
		return "Forbidden - the CI user lacks permission"
	case 404:
		return "Not found - the job or build does not exist"
	case 405:
		return "Method not allowed"
	case 500:
		return "Internal server error - Jenkins encountered an error"
	case 502:
		return "Bad gateway - Jenkins proxy error"
	case 503:
		return "Service unavailable - Jenkins may be starting up or overloaded"
	default:
		return fmt.Sprintf("Request failed with status %d", statusCode)
	}
}

func serverOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
