package routes

import "strings"

// PublicURL joins the public endpoint with the path of a "METHOD /path" route key.
func PublicURL(publicBase, routeKey string) string {
	path := routeKey
	if i := strings.IndexByte(routeKey, ' '); i >= 0 {
		path = routeKey[i+1:]
	}
	return strings.TrimRight(publicBase, "/") + "/" + strings.TrimLeft(path, "/")
}
