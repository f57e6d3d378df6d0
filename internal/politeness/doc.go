// Package politeness decides whether and when the crawler may request a URL.
//
// A Gate combines two checks:
//
//   - robots exclusion: robots.txt is fetched lazily from
//     {scheme}://{host}/robots.txt the first time a host is seen, parsed with
//     github.com/temoto/robotstxt and cached for the rest of the run.
//   - request pacing: every host gets its own golang.org/x/time/rate limiter
//     shared by all workers, plus a random jitter before each request.
//
// What happens when robots.txt cannot be retrieved is controlled by Mode.
// In lenient mode an unavailable robots.txt allows everything and a warning
// is logged. In strict mode it is an error that aborts the run. A 4xx
// response means the site has no robots.txt and allows everything in both
// modes.
package politeness
