package trace

import (
	"github.com/google/martian/v3/har"
	exps "golang.org/x/exp/slices"

	"github.com/mel2oo/go-httpwire/slices"
)

// HAR converts everything recorded so far into an HTTP Archive. Entries are
// ordered by start time, which may differ from recording order when
// exchanges finish concurrently.
func (c *Collector) HAR() *har.HAR {
	exchanges := c.Exchanges()
	exps.SortFunc(exchanges, func(a, b Exchange) bool {
		return a.Start.Before(b.Start)
	})

	return &har.HAR{
		Log: &har.Log{
			Version: "1.2",
			Creator: &har.Creator{
				Name:    "go-httpwire",
				Version: "0.1",
			},
			Entries: slices.Map(exchanges, exchangeToHAR),
		},
	}
}

func exchangeToHAR(ex Exchange) *har.Entry {
	return &har.Entry{
		ID:              ex.ID.String(),
		StartedDateTime: ex.Start,
		Time:            ex.Duration.Milliseconds(),
		Request:         requestToHAR(ex),
		Response:        responseToHAR(ex.Response),
	}
}

func requestToHAR(ex Exchange) *har.Request {
	return &har.Request{
		Method:      ex.Request.Method,
		URL:         "http://" + ex.Host + ex.Request.Path,
		HTTPVersion: ex.Request.Version,
		Headers:     convertHeaders(ex.Request.Headers),
		Cookies:     []har.Cookie{},
		QueryString: []har.QueryString{},
		HeadersSize: -1,
		BodySize:    -1,
	}
}

func responseToHAR(r Response) *har.Response {
	return &har.Response{
		Status:      r.Status,
		StatusText:  r.Reason,
		HTTPVersion: r.Version,
		Headers:     convertHeaders(r.Headers),
		Cookies:     []har.Cookie{},
		Content: &har.Content{
			Size:     r.BodySize,
			MimeType: headerValue(r.Headers, "Content-Type"),
		},
		HeadersSize: -1,
		BodySize:    r.BodySize,
	}
}

func convertHeaders(headers []Header) []har.Header {
	if headers == nil {
		return []har.Header{}
	}
	return slices.Map(headers, func(h Header) har.Header {
		return har.Header{Name: h.Name, Value: h.Value}
	})
}

func headerValue(headers []Header, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
