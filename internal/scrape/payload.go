package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// externalURLKey marks a result object whose real payload lives at a URL.
const externalURLKey = "jsonUrl"

// variant tags the shape of a result value.
type variant int

const (
	variantNull variant = iota
	variantString
	variantExternal
	variantObject
	variantList
	variantOther
)

func (v variant) String() string {
	switch v {
	case variantNull:
		return "null"
	case variantString:
		return "json-string"
	case variantExternal:
		return "external-url"
	case variantObject:
		return "single-object"
	case variantList:
		return "list"
	default:
		return "other"
	}
}

// payload is one classified result value.
type payload struct {
	kind variant
	raw  json.RawMessage
	text string
	url  string
}

// classify tags raw without decoding more than its outermost value.
func classify(raw json.RawMessage) payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return payload{kind: variantNull}
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return payload{kind: variantOther, raw: trimmed}
		}
		return payload{kind: variantString, raw: trimmed, text: text}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return payload{kind: variantOther, raw: trimmed}
		}
		ref, ok := fields[externalURLKey]
		if !ok {
			return payload{kind: variantObject, raw: trimmed}
		}
		// url stays empty when the reference is not a string.
		var url string
		_ = json.Unmarshal(ref, &url)
		return payload{kind: variantExternal, raw: trimmed, url: url}
	case '[':
		return payload{kind: variantList, raw: trimmed}
	default:
		return payload{kind: variantOther, raw: trimmed}
	}
}

type externalFetcher func(ctx context.Context, url string) ([]byte, error)

// resolveRecords unwraps raw into a list of record documents. A JSON string is
// decoded only before any external fetch, and the external reference is
// followed at most once; a second reference is returned as a plain record.
func resolveRecords(ctx context.Context, raw json.RawMessage, fetch externalFetcher) ([]json.RawMessage, error) {
	var decodedString, followedURL bool
	for {
		p := classify(raw)
		switch {
		case p.kind == variantNull:
			return nil, nil
		case p.kind == variantString && !decodedString:
			decodedString = true
			if !json.Valid([]byte(p.text)) {
				return nil, newError(KindResultFormatInvalid, "invalid data format received from provider", nil)
			}
			raw = json.RawMessage(p.text)
		case p.kind == variantExternal && !followedURL:
			followedURL = true
			decodedString = true
			if p.url == "" {
				return nil, newError(KindResultFetchFailed, "external result reference is not a URL", nil)
			}
			body, err := fetch(ctx, p.url)
			if err != nil {
				return nil, newError(KindResultFetchFailed, "failed to fetch JSON from external URL", err)
			}
			if !json.Valid(body) {
				return nil, newError(KindResultFormatInvalid, "external URL returned invalid JSON", nil)
			}
			raw = body
		case p.kind == variantObject || p.kind == variantExternal:
			return []json.RawMessage{p.raw}, nil
		case p.kind == variantList:
			var items []json.RawMessage
			if err := json.Unmarshal(p.raw, &items); err != nil {
				return nil, newError(KindResultFormatInvalid, "malformed result list", err)
			}
			return items, nil
		default:
			return nil, newError(KindResultFormatInvalid,
				fmt.Sprintf("unexpected data format received from provider: %s", p.kind), nil)
		}
	}
}
