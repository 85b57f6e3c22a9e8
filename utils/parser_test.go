package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadProductID(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Short Id", "1234", "000000001234"},
		{"Quoted Id", CleanProductID(`"1234"`), "000000001234"},
		{"Full Width", "123456789012", "123456789012"},
		{"Longer Id", "12345678901234", "12345678901234"},
		{"Empty", "", "000000000000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PadProductID(tc.input))
		})
	}
}

func TestProductURL(t *testing.T) {
	testCases := []struct {
		name     string
		sample   string
		id       string
		expected string
	}{
		{
			"Replaces First Anchor",
			"https://shop.example.jp/shopdetail/000000000999/000000000888/",
			"000000001234",
			"https://shop.example.jp/shopdetail/000000001234/000000000888/",
		},
		{
			"Query Anchor",
			"https://shop.example.jp/item?id=000000000001&x=1",
			"000000000042",
			"https://shop.example.jp/item?id=000000000042&x=1",
		},
		{"No Anchor", "https://shop.example.jp/item", "000000000042", "https://shop.example.jp/item"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ProductURL(tc.sample, tc.id))
		})
	}

	assert.True(t, HasProductAnchor("https://a/000000000001"))
	assert.False(t, HasProductAnchor("https://a/00000000001"))
}

func TestDomainFolderName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Host", "https://www.shop.example.jp/shopdetail/000000000001/", "www.shop.example.jp"},
		{"Host With Port", "http://localhost:8080/x", "localhost"},
		{"Upper Case", "https://Shop.Example.JP/", "shop.example.jp"},
		{"Not A URL", "shopdetail/000000000001", UnknownDomain},
		{"Empty", "", UnknownDomain},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DomainFolderName(tc.input))
		})
	}
}
