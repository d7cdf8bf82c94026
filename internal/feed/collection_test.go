package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func item(id string) Item {
	return Item{ID: id, Content: "content " + id, AuthorID: "author"}
}

func requireUnique(t *testing.T, c *Collection) {
	t.Helper()
	seen := map[string]bool{}
	for _, it := range c.Items() {
		require.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
	}
}

func TestCollection_NoDuplicateIdentities(t *testing.T) {
	c := NewCollection()

	c.ReplaceAll([]Item{item("a"), item("b"), item("a")})
	requireUnique(t, c)
	require.Equal(t, []string{"a", "b"}, ids(c.Items()))

	added := c.Append([]Item{item("b"), item("c"), item("c"), item("d")})
	require.Equal(t, 2, added)
	requireUnique(t, c)

	c.Prepend(item("c"))
	requireUnique(t, c)
	require.Equal(t, []string{"c", "a", "b", "d"}, ids(c.Items()))

	require.True(t, c.ReplaceByID("a", item("d")))
	requireUnique(t, c)
	require.Equal(t, []string{"c", "d", "b"}, ids(c.Items()))

	c.MergeFront([]Item{item("e"), item("b"), item("e")})
	requireUnique(t, c)
	require.Equal(t, []string{"e", "c", "d", "b"}, ids(c.Items()))
}

func TestCollection_AppendPreservesOrder(t *testing.T) {
	c := NewCollection()
	c.Append([]Item{item("a1"), item("a2")})
	c.Append([]Item{item("b1"), item("a1"), item("b2")})

	require.Equal(t, []string{"a1", "a2", "b1", "b2"}, ids(c.Items()))
}

func TestCollection_ReplaceByIDKeepsPosition(t *testing.T) {
	c := NewCollection()
	c.ReplaceAll([]Item{item("a"), item("b")})
	c.Prepend(Item{ID: "temp-1", Tentative: true})

	require.True(t, c.ReplaceByID("temp-1", item("real")))
	require.Equal(t, []string{"real", "a", "b"}, ids(c.Items()))

	require.False(t, c.ReplaceByID("missing", item("x")))
	require.Equal(t, 3, c.Len())
}

func TestCollection_RemoveAndConfirmedLen(t *testing.T) {
	c := NewCollection()
	c.ReplaceAll([]Item{item("a"), item("b")})
	c.Prepend(Item{ID: "temp-1", Tentative: true})

	require.Equal(t, 3, c.Len())
	require.Equal(t, 2, c.ConfirmedLen())

	require.True(t, c.RemoveByID("temp-1"))
	require.False(t, c.RemoveByID("temp-1"))
	require.Equal(t, []string{"a", "b"}, ids(c.Items()))

	_, ok := c.Get("b")
	require.True(t, ok)

	c.Clear()
	require.Zero(t, c.Len())
}

func TestCollection_MergeFrontRefreshesInPlace(t *testing.T) {
	c := NewCollection()
	c.ReplaceAll([]Item{item("a"), item("b"), item("c")})

	updated := item("b")
	updated.Stats.LikeCount = 9
	c.MergeFront([]Item{item("new"), updated})

	require.Equal(t, []string{"new", "a", "b", "c"}, ids(c.Items()))
	got, ok := c.Get("b")
	require.True(t, ok)
	require.Equal(t, 9, got.Stats.LikeCount)
}

func TestCollection_UpdateCannotChangeID(t *testing.T) {
	c := NewCollection()
	c.ReplaceAll([]Item{item("a"), item("b")})

	got, ok := c.Update("a", func(it *Item) {
		it.ID = "b"
		it.Content = "edited"
	})
	require.True(t, ok)
	require.Equal(t, "a", got.ID)
	require.Equal(t, "edited", got.Content)
	requireUnique(t, c)

	n := c.UpdateWhere(func(it Item) bool { return it.AuthorID == "author" }, func(it *Item) {
		it.ViewerState.FollowsAuthor = true
	})
	require.Equal(t, 2, n)

	_, ok = c.Update("missing", func(*Item) {})
	require.False(t, ok)
}

func TestCollection_ItemsIsACopy(t *testing.T) {
	c := NewCollection()
	c.ReplaceAll([]Item{item("a")})

	items := c.Items()
	items[0].Content = "changed"

	got, _ := c.Get("a")
	require.Equal(t, "content a", got.Content)
}
