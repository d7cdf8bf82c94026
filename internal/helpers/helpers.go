// SPDX-License-Identifier: AGPL-3.0-only
package helpers

import (
	"fmt"
	"net/url"
	"strings"
)

// ConvNetworkToURL returns the public profile page of handle.
func ConvNetworkToURL(network, handle, instanceURL string) (string, error) {
	switch network {
	case "Bluesky":
		return "https://bsky.app/profile/" + handle, nil
	case "Mastodon":
		host, acct, err := mastodonHost(handle, instanceURL)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("https://%v/@%v", host, acct), nil
	default:
		return "", fmt.Errorf("network %v not recognized", network)
	}
}

// ConvPostToURL returns the public page of a post. Bluesky ids are
// at:// URIs; Mastodon ids are status ids on the author's home instance
// or, for local accounts, on instanceURL.
func ConvPostToURL(network, author, networkId, instanceURL string) (string, error) {
	switch network {
	case "Bluesky":
		uriSplit := strings.Split(strings.TrimPrefix(networkId, "at://"), "/")
		if len(uriSplit) != 3 {
			return "", fmt.Errorf("invalid Bluesky post URI %q", networkId)
		}
		if author == "" {
			author = uriSplit[0]
		}
		return "https://bsky.app/profile/" + author + "/post/" + uriSplit[2], nil
	case "Mastodon":
		host, acct, err := mastodonHost(author, instanceURL)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("https://%v/@%v/%v", host, acct, networkId), nil
	default:
		return "", fmt.Errorf("network %v not recognized", network)
	}
}

func mastodonHost(acct, instanceURL string) (string, string, error) {
	splits := strings.Split(strings.TrimPrefix(acct, "@"), "@")
	if len(splits) == 2 && splits[1] != "" {
		return splits[1], splits[0], nil
	}
	u, err := url.Parse(instanceURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("cannot resolve instance for %q", acct)
	}
	return u.Host, splits[0], nil
}
