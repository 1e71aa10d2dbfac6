package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCoffees(t *testing.T) {
	t.Parallel()

	t.Run("filters unavailable products", func(t *testing.T) {
		t.Parallel()

		listing := &Listing{
			Products: []Product{
				{
					Title:    "Ethiopia - Instant Coffee",
					Handle:   "ethiopia",
					Variants: []Variant{{Available: true, Price: "14.00"}},
				},
				{
					Title:    "Sold Out - Instant Coffee",
					Handle:   "sold-out",
					Variants: []Variant{{Available: false, Price: "12.00"}},
				},
			},
		}

		coffees := DeriveCoffees(listing)
		require.Len(t, coffees, 1)
		assert.Equal(t, "ethiopia", coffees[0].Handle)
		assert.Equal(t, "14.00", coffees[0].Price)
	})

	t.Run("sorts by title ignoring case", func(t *testing.T) {
		t.Parallel()

		listing := &Listing{
			Products: []Product{
				{Title: "colombia", Handle: "colombia", Variants: []Variant{{Available: true}}},
				{Title: "Brazil", Handle: "brazil", Variants: []Variant{{Available: true}}},
				{Title: "aeropress blend", Handle: "aeropress", Variants: []Variant{{Available: true}}},
			},
		}

		coffees := DeriveCoffees(listing)
		require.Len(t, coffees, 3)
		assert.Equal(t, "aeropress", coffees[0].Handle)
		assert.Equal(t, "brazil", coffees[1].Handle)
		assert.Equal(t, "colombia", coffees[2].Handle)
	})

	t.Run("picks the first image only", func(t *testing.T) {
		t.Parallel()

		listing := &Listing{
			Products: []Product{
				{
					Title:    "Kenya",
					Handle:   "kenya",
					Variants: []Variant{{Available: true}},
					Images: []ProductImage{
						{Src: "https://cdn.example.com/kenya-1.jpg"},
						{Src: "https://cdn.example.com/kenya-2.jpg"},
					},
				},
				{
					Title:    "Peru",
					Handle:   "peru",
					Variants: []Variant{{Available: true}},
				},
			},
		}

		coffees := DeriveCoffees(listing)
		require.Len(t, coffees, 2)
		assert.Equal(t, "https://cdn.example.com/kenya-1.jpg", coffees[0].ImageURL)
		assert.Equal(t, "", coffees[1].ImageURL)
	})

	t.Run("empty listing derives empty slice", func(t *testing.T) {
		t.Parallel()

		coffees := DeriveCoffees(&Listing{})
		assert.Empty(t, coffees)
	})
}

func TestImageURLs(t *testing.T) {
	t.Parallel()

	coffees := []Coffee{
		{Handle: "a", ImageURL: "https://cdn.example.com/a.jpg"},
		{Handle: "b"}, // 이미지 없는 상품은 제외됩니다.
		{Handle: "c", ImageURL: "https://cdn.example.com/c.jpg"},
	}

	assert.Equal(t, []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/c.jpg",
	}, ImageURLs(coffees))

	assert.Empty(t, ImageURLs(nil))
}
