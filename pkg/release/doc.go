/*
Package release resolves toolchain version selectors against the GitHub
releases index of paritytech/polkajam-releases.

A selector is either "latest" (or empty) or an explicit tag. "latest" is the
newest release whose tag starts with "nightly", ordered by publish date and
then by tag. An explicit tag is fetched directly; a 404 is
types.ErrVersionNotFound.

Within a release, the asset for a platform is the one whose name contains
the platform suffix (linux-x86_64, macos-aarch64, ...) and ends in a
supported archive extension, preferring the platform's native format.
When none matches, the error lists what the release does offer.

# Network behavior

Requests carry "User-Agent: jamctl" and, when GITHUB_TOKEN is set, a bearer
token. Transport errors and 5xx responses get up to three attempts,
paced by a golang.org/x/time/rate limiter. Other 4xx responses, rate limits
included, fail at once. Everything network related wraps types.ErrNetwork.

Info answers from the config alone and never touches the network.
*/
package release
