// Package catalog holds the drinkware and outlet data the tools search over.
// Catalogs load from YAML files when configured and fall back to a small
// embedded default set, so the service always starts with usable data.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Product is one drinkware item.
type Product struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Price       float64  `yaml:"price"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Outlet is one physical store.
type Outlet struct {
	Name     string   `yaml:"name"`
	City     string   `yaml:"city"`
	Address  string   `yaml:"address"`
	Services []string `yaml:"services"`
	Hours    string   `yaml:"hours"`
}

// HasService reports whether the outlet offers the named service.
func (o Outlet) HasService(service string) bool {
	for _, s := range o.Services {
		if strings.EqualFold(s, service) {
			return true
		}
	}
	return false
}

type productFile struct {
	Products []Product `yaml:"products"`
}

type outletFile struct {
	Outlets []Outlet `yaml:"outlets"`
}

// LoadProducts reads a product catalog from path, or returns the embedded
// defaults when path is empty.
func LoadProducts(path string) ([]Product, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProducts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseProducts(data)
}

// ParseProducts unmarshals and validates YAML product data.
func ParseProducts(data []byte) ([]Product, error) {
	var f productFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse products: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog: product file has no products")
	}
	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("catalog: product %d has no name", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("catalog: product %q has negative price", p.Name)
		}
	}
	return f.Products, nil
}

// LoadOutlets reads an outlet catalog from path, or returns the embedded
// defaults when path is empty.
func LoadOutlets(path string) ([]Outlet, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultOutlets(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseOutlets(data)
}

// ParseOutlets unmarshals and validates YAML outlet data.
func ParseOutlets(data []byte) ([]Outlet, error) {
	var f outletFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse outlets: %w", err)
	}
	if len(f.Outlets) == 0 {
		return nil, fmt.Errorf("catalog: outlet file has no outlets")
	}
	for i, o := range f.Outlets {
		if strings.TrimSpace(o.Name) == "" {
			return nil, fmt.Errorf("catalog: outlet %d has no name", i)
		}
		if strings.TrimSpace(o.City) == "" {
			return nil, fmt.Errorf("catalog: outlet %q has no city", o.Name)
		}
	}
	return f.Outlets, nil
}

// DefaultProducts returns the embedded drinkware catalog.
func DefaultProducts() []Product {
	return []Product{
		{Name: "All Day Cup 500ml", Category: "tumbler", Price: 55, Description: "Double-wall stainless steel tumbler with leakproof lid.", Tags: []string{"tumbler", "cup", "stainless", "500ml"}},
		{Name: "All Day Cup 650ml", Category: "tumbler", Price: 65, Description: "Larger double-wall tumbler for all-day sipping.", Tags: []string{"tumbler", "cup", "stainless", "650ml"}},
		{Name: "Frozee Cold Cup", Category: "cup", Price: 39, Description: "Insulated cold cup with reusable straw.", Tags: []string{"cup", "cold", "straw", "blue"}},
		{Name: "OG Ceramic Mug", Category: "mug", Price: 29, Description: "Classic ceramic mug with matte finish.", Tags: []string{"mug", "ceramic"}},
		{Name: "Sundaze Travel Flask", Category: "flask", Price: 79, Description: "Vacuum flask that keeps drinks hot for 12 hours.", Tags: []string{"flask", "bottle", "travel", "hot"}},
		{Name: "Glass Bottle 450ml", Category: "bottle", Price: 45, Description: "Borosilicate glass bottle with bamboo lid.", Tags: []string{"bottle", "glass", "450ml"}},
		{Name: "Straw Set", Category: "accessory", Price: 15, Description: "Reusable stainless straw set with cleaning brush.", Tags: []string{"straw", "accessory", "stainless"}},
		{Name: "Cup Sleeve", Category: "accessory", Price: 12, Description: "Knitted sleeve that fits both All Day Cup sizes.", Tags: []string{"sleeve", "accessory"}},
	}
}

// DefaultOutlets returns the embedded outlet directory.
func DefaultOutlets() []Outlet {
	return []Outlet{
		{Name: "ZUS Coffee KLCC", City: "Kuala Lumpur", Address: "Lot G-23, Suria KLCC", Services: []string{"dine-in", "pickup", "wifi"}, Hours: "8am-10pm"},
		{Name: "ZUS Coffee Bangsar", City: "Kuala Lumpur", Address: "12 Jalan Telawi 2, Bangsar", Services: []string{"dine-in", "delivery", "wifi"}, Hours: "7am-11pm"},
		{Name: "ZUS Coffee Cheras Trader Square", City: "Kuala Lumpur", Address: "Cheras Trader Square, Cheras", Services: []string{"drive-thru", "pickup"}, Hours: "7am-12am"},
		{Name: "ZUS Coffee SS2", City: "Petaling Jaya", Address: "21 Jalan SS2/64", Services: []string{"dine-in", "pickup", "delivery"}, Hours: "8am-10pm"},
		{Name: "ZUS Coffee Damansara Uptown", City: "Petaling Jaya", Address: "62 Jalan SS21/35, Damansara Utama", Services: []string{"dine-in", "wifi"}, Hours: "8am-10pm"},
		{Name: "ZUS Coffee Kota Damansara Drive-Thru", City: "Petaling Jaya", Address: "5 Persiaran Mahogani, Kota Damansara", Services: []string{"drive-thru", "pickup", "24-hour"}, Hours: "24 hours"},
		{Name: "ZUS Coffee i-City", City: "Shah Alam", Address: "Jalan Multimedia, i-City", Services: []string{"dine-in", "pickup"}, Hours: "8am-10pm"},
		{Name: "ZUS Coffee Setia Alam Drive-Thru", City: "Shah Alam", Address: "Jalan Setia Prima, Setia Alam", Services: []string{"drive-thru", "delivery"}, Hours: "7am-11pm"},
		{Name: "ZUS Coffee Subang Empire", City: "Subang Jaya", Address: "Empire Shopping Gallery, SS16", Services: []string{"dine-in", "wifi", "delivery"}, Hours: "8am-10pm"},
		{Name: "ZUS Coffee Cyberjaya Shaftsbury", City: "Cyberjaya", Address: "Shaftsbury Square, Persiaran Multimedia", Services: []string{"dine-in", "pickup", "wifi"}, Hours: "8am-9pm"},
	}
}
