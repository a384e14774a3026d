package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><span>Front</span> <b>Door</b></div>`,
	))
	if err != nil {
		t.Fatal(err)
	}

	nodes := doc.Find("div").Nodes
	require.Len(t, nodes, 1)
	require.Equal(t, "Front Door", GetText(nodes[0]))
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"  Front Door  ", "Front Door"},
		{"Front\n\t  Door", "Front Door"},
		{"Back\x00Door", "BackDoor"},
		{"", ""},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, CleanText(tc.input))
	}
}
