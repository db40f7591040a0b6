package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinked(t *testing.T) {
	cases := []struct {
		group1 string
		group2 string
		linked bool
	}{
		{"SY-CSDS-A", "SY-CSDS-A-B1", true},
		{"SY-CSDS-A-B1", "SY-CSDS-A", true},
		{"SY-CSDS-A", "B1", false},
		{"SY-CSDS-A", "SY-CSDS-A", false},
		{"SY-CSDS-A", "sy-csds-a-b1", false},
		{"SY-CSDS-A-B1", "SY-CSDS-A-B2", false},
	}

	for _, c := range cases {
		t.Run(c.group1+" "+c.group2, func(t *testing.T) {
			assert.Equal(t, c.linked, Linked(c.group1, c.group2))
		})
	}
}

func TestResolveLinks(t *testing.T) {
	t.Run("Links are symmetric and not transitive", func(t *testing.T) {
		//** Act
		links, ambiguities := ResolveLinks([]string{"SY-CSDS-A-B1", "SY-CSDS-A", "SY-CSDS-A-B2", "TY-IT", ""})

		//** Assert
		assert.Empty(t, ambiguities)
		assert.True(t, links.Linked("SY-CSDS-A", "SY-CSDS-A-B1"))
		assert.True(t, links.Linked("SY-CSDS-A-B1", "SY-CSDS-A"))
		assert.False(t, links.Linked("SY-CSDS-A-B1", "SY-CSDS-A-B2"))
		assert.Equal(t, []string{"SY-CSDS-A-B1", "SY-CSDS-A-B2"}, links.Neighbours("SY-CSDS-A"))
		assert.Empty(t, links.Neighbours("TY-IT"))
		assert.NotContains(t, links, "")
	})

	t.Run("Collide on shared or linked groups", func(t *testing.T) {
		//** Arrange
		links, _ := ResolveLinks([]string{"SY-CSDS-A", "SY-CSDS-A-B1", "SY-CSDS-A-B2", "TY-IT"})

		//** Assert
		assert.True(t, links.Collide([]string{"TY-IT"}, []string{"SY-CSDS-A", "TY-IT"}))
		assert.True(t, links.Collide([]string{"SY-CSDS-A-B2"}, []string{"SY-CSDS-A"}))
		assert.False(t, links.Collide([]string{"SY-CSDS-A-B1"}, []string{"SY-CSDS-A-B2", "TY-IT"}))
	})

	t.Run("Group containing unrelated groups is ambiguous", func(t *testing.T) {
		//** Act
		links, ambiguities := ResolveLinks([]string{"A-B1", "A", "B1"})

		//** Assert
		require.Len(t, ambiguities, 1)
		assert.Equal(t, "A-B1", ambiguities[0].Group)
		assert.Equal(t, []string{"A", "B1"}, ambiguities[0].Contained)
		assert.True(t, links.Linked("A-B1", "A"))
		assert.True(t, links.Linked("A-B1", "B1"))
	})

	t.Run("Nested chain is not ambiguous", func(t *testing.T) {
		//** Act
		_, ambiguities := ResolveLinks([]string{"SY", "SY-CSDS", "SY-CSDS-A"})

		//** Assert
		assert.Empty(t, ambiguities)
	})
}
