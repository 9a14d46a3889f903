package screen

import "net/url"

// ComposeURL appends the supplied parameters to the base URL's query. The
// base's original query items are preserved; a key present in both keeps both
// values. An unparsable base is returned unchanged. Keys are encoded in
// sorted order so the composed URL is stable across runs.
func ComposeURL(base string, params map[string]string) string {
	if len(params) == 0 {
		return base
	}

	u, err := url.Parse(base)
	if err != nil {
		return base
	}

	q := u.Query()
	for key, value := range params {
		q.Add(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
