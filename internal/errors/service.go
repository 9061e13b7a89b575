// internal/errors/service.go - CLI error reporting
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/output"
	"github.com/valpere/listingharvest/internal/pipeline"
	"github.com/valpere/listingharvest/internal/scraper"
	"github.com/valpere/listingharvest/internal/sink"
)

// Exit codes returned by the CLI
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitConfig      = 2
	ExitNetwork     = 3
	ExitParsing     = 4
	ExitOutput      = 5
	ExitValidation  = 6
	ExitDiscovery   = 7
	ExitSinkOffline = 8
)

// Service converts run errors into user-facing messages and exit codes
type Service struct {
	messageHandler *MessageHandler
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// NewService creates a new error service
func NewService() *Service {
	return &Service{messageHandler: &MessageHandler{showTechnical: false}}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	var validation config.ValidationErrors
	var status *scraper.StatusError

	switch {
	case stderrors.As(err, &validation):
		suggestions = make([]string, 0, len(validation))
		for _, ve := range validation {
			suggestions = append(suggestions, ve.Error())
		}
		return "Invalid Configuration",
			fmt.Sprintf("The configuration has %d problem(s).", len(validation)),
			suggestions

	case stderrors.Is(err, scraper.ErrFirstPage):
		hints := []string{
			"Check that the search term returns results in a browser",
			"Verify search.url_template points at the listing site",
			"Increase fetch.timeout if the site is slow",
		}
		if stderrors.As(err, &status) && (status.StatusCode == 403 || status.StatusCode == 429) {
			hints = append(hints, "The site is refusing requests; lower fetch.concurrency or set fetch.requests_per_second")
		}
		return "Listing Unavailable",
			"The first listing page could not be fetched, so no items were discovered.",
			hints

	case stderrors.Is(err, pipeline.ErrSnapshot):
		return "Records Service Unavailable",
			"The stored records could not be read, so nothing was submitted.",
			[]string{
				"Check that the records service is running",
				"Verify sink.base_url or sink.sql.dsn",
			}

	case stderrors.Is(err, sink.ErrUnsupportedType), stderrors.Is(err, output.ErrUnsupportedFormat):
		return "Unsupported Option",
			"A sink type or backup format in the configuration is not supported.",
			[]string{
				"Use sink.type http or sql",
				"Use backup.format csv, json, yaml, xlsx or sqlite",
			}
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "Connection Timeout",
			"The request timed out while trying to connect.",
			[]string{
				"Check your internet connection",
				"Increase timeout value in configuration",
			}
	case strings.Contains(errStr, "no such host"):
		return "Domain Not Found",
			"Could not resolve the host name.",
			[]string{"Check if the URL is spelled correctly"}
	case strings.Contains(errStr, "connection refused"):
		return "Connection Refused",
			"The server refused the connection.",
			[]string{"The server might be temporarily down"}
	case strings.Contains(errStr, "yaml") || strings.Contains(errStr, "config"):
		return "Configuration Error",
			"The configuration file could not be loaded.",
			[]string{
				"Run 'listingharvest validate' to check the file",
				"Run 'listingharvest template' for a working example",
			}
	}

	return "Run Failed", err.Error(), nil
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var validation config.ValidationErrors
	switch {
	case stderrors.As(err, &validation):
		return ExitValidation
	case stderrors.Is(err, scraper.ErrFirstPage):
		return ExitDiscovery
	case stderrors.Is(err, pipeline.ErrSnapshot):
		return ExitSinkOffline
	case stderrors.Is(err, output.ErrUnsupportedFormat), stderrors.Is(err, sink.ErrUnsupportedType):
		return ExitConfig
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return ExitConfig
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "no such host"):
		return ExitNetwork
	case strings.Contains(errStr, "selector") || strings.Contains(errStr, "parse"):
		return ExitParsing
	case strings.Contains(errStr, "backup") || strings.Contains(errStr, "write"):
		return ExitOutput
	default:
		return ExitGeneral
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	if err == nil {
		return ""
	}
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
	}

	return b.String()
}
