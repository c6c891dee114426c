package cmd

import (
	"errors"
	"fmt"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/samber/lo"
	"github.com/subplay/subplay/color"
	"github.com/subplay/subplay/config"
	"github.com/subplay/subplay/style"
)

// closest returns the candidate with the smallest edit distance to s.
func closest(s string, candidates []string) string {
	return lo.MinBy(candidates, func(a string, b string) bool {
		return levenshtein.Distance(s, a) < levenshtein.Distance(s, b)
	})
}

func didYouMean(kind, got string, candidates []string) error {
	return errors.New(fmt.Sprintf(
		"unknown %s %s, did you mean %s?",
		kind,
		style.Fg(color.Red)(got),
		style.Fg(color.Yellow)(closest(got, candidates)),
	))
}

func errUnknownKey(key string) error {
	return didYouMean("key", key, lo.Keys(config.Default))
}

func errUnknownBackend(name string) error {
	return didYouMean("backend", name, backendNames())
}
