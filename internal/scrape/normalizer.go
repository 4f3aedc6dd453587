package scrape

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/salesnav-relay/internal/metrics"
)

// resultField holds the result value inside the provider's result document.
const resultField = "resultObject"

// Normalizer turns a finished container's result into ProfileRecords.
type Normalizer struct {
	provider Provider
	logger   *zap.Logger
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(provider Provider, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{provider: provider, logger: logger}
}

// FetchAndNormalize fetches the result of job and projects every record. A null
// result is an empty, successful scrape.
func (n *Normalizer) FetchAndNormalize(ctx context.Context, job JobID) ([]ProfileRecord, error) {
	body, err := n.provider.FetchResult(ctx, job)
	if err != nil {
		return nil, newError(KindResultFetchFailed, "failed to fetch data", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, newError(KindResultFormatInvalid, "result document is not a JSON object", err)
	}
	result, ok := doc[resultField]
	if !ok {
		return nil, newError(KindResultFetchFailed, "no data received from provider", nil)
	}

	items, err := resolveRecords(ctx, result, n.provider.FetchExternal)
	if err != nil {
		return nil, err
	}

	records := make([]ProfileRecord, 0, len(items))
	for i, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, newError(KindResultFormatInvalid, "record "+strconv.Itoa(i)+" is not an object", err)
		}
		records = append(records, ProjectProfile(fields))
	}
	metrics.AddProfiles(len(records))
	n.logger.Info("results normalized", zap.String("job_id", string(job)), zap.Int("profiles", len(records)))
	return records, nil
}

// ProjectProfile maps one raw record onto the fixed profile schema. Missing keys
// default to the zero value and unknown keys are dropped.
func ProjectProfile(item map[string]any) ProfileRecord {
	return ProfileRecord{
		FirstName:              text(item, "firstName"),
		LastName:               text(item, "lastName"),
		Title:                  text(item, "title"),
		CompanyName:            text(item, "companyName"),
		Industry:               text(item, "industry"),
		CompanyLocation:        text(item, "companyLocation"),
		ProfileLocation:        text(item, "location"),
		ConnectionDegree:       text(item, "connectionDegree"),
		ProfileImageURL:        text(item, "profileImageUrl"),
		SharedConnectionsCount: count(item, "sharedConnectionsCount"),
		DefaultProfileURL:      text(item, "defaultProfileUrl"),
		CompanyURL:             firstText(item, "CompanyUrl", "regularCompanyUrl"),
	}
}

func text(item map[string]any, key string) string {
	switch v := item[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func firstText(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := text(item, key); v != "" {
			return v
		}
	}
	return ""
}

// count reads a non-negative whole number. Anything else, including fractions
// and values beyond int32, counts as 0.
func count(item map[string]any, key string) int {
	switch v := item[key].(type) {
	case float64:
		if v < 0 || v > math.MaxInt32 || v != math.Trunc(v) {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil || n < 0 {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}
