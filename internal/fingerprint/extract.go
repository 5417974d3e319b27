package fingerprint

import (
	"net/url"
	"regexp"
)

// appScriptPattern captures the token between "app." and ".js" in a path
// segment that starts with "app.". The capture is non-greedy and stays inside
// the segment, so "app.abc.js.map" yields "abc".
var appScriptPattern = regexp.MustCompile(`(?:^|/)app\.([^/]*?)\.js`)

// Extract returns the fingerprint captured from the first URL in urls whose
// path has an app.<fingerprint>.js file name. Later matches are ignored. An
// empty string means no URL matched.
func Extract(urls []string) string {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if m := appScriptPattern.FindStringSubmatch(scriptPath(u)); m != nil {
			return m[1]
		}
	}
	return ""
}

// Matches reports whether src names an app bundle script.
func Matches(src string) bool {
	return appScriptPattern.MatchString(scriptPath(src))
}

// scriptPath drops the scheme, host, query and fragment of src so that only
// the path is matched. Unparseable values are matched as given.
func scriptPath(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	return u.Path
}
