package genericrepo

import (
	"context"
	"fmt"
	"sort"

	"github.com/goliatone/go-repository-query/filters"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tag is one (key, value, author) tag carried by an aggregate.
type Tag struct {
	Key      string
	Value    string
	AuthorID string
}

// TagRow is a row of the shared tag table. A tag is unique per
// (key, value, author_id, type).
type TagRow struct {
	bun.BaseModel `bun:"table:tags,alias:tg"`

	ID       string `bun:"id,pk"`
	Key      string `bun:"key,notnull,unique:tag_identity"`
	Value    string `bun:"value,notnull,unique:tag_identity"`
	AuthorID string `bun:"author_id,notnull,unique:tag_identity"`
	Type     string `bun:"type,notnull,unique:tag_identity"`
}

// TagLinkRow links a tag to the aggregate row that carries it.
type TagLinkRow struct {
	bun.BaseModel `bun:"table:tag_links,alias:tg_link"`

	TagID   string `bun:"tag_id,pk"`
	OwnerID string `bun:"owner_id,pk"`
}

var tagNamespace = uuid.MustParse("6f1d8f0e-4b0a-4c61-9a57-6b8f3c1e2d90")

// TagID derives the id of a tag from its identity, so concurrent writers of
// the same tag agree on it.
func TagID(typ string, t Tag) string {
	name := typ + "\x00" + t.Key + "\x00" + t.Value + "\x00" + t.AuthorID
	return uuid.NewSHA1(tagNamespace, []byte(name)).String()
}

// CreateTagTables creates the tag relation if it does not exist.
func CreateTagTables(ctx context.Context, db bun.IDB) error {
	for _, model := range []any{(*TagRow)(nil), (*TagLinkRow)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create tag tables: %w", err)
		}
	}
	return nil
}

// TagChildren replaces the tag links of the owner with tags. Missing tags are
// inserted; tags already present are reused.
func TagChildren(schema filters.TagSchema, tags []Tag) ChildWrite {
	return &tagsWrite{typ: schema.Type, tags: tags}
}

type tagsWrite struct {
	typ  string
	tags []Tag
}

func (w *tagsWrite) Write(ctx context.Context, db bun.IDB, ownerID string) error {
	if _, err := db.NewDelete().
		Model((*TagLinkRow)(nil)).
		Where("? = ?", bun.Ident("owner_id"), ownerID).
		Exec(ctx); err != nil {
		return fmt.Errorf("unlink tags of %s: %w", ownerID, err)
	}
	if len(w.tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(w.tags))
	rows := make([]*TagRow, 0, len(w.tags))
	links := make([]*TagLinkRow, 0, len(w.tags))
	for _, t := range w.tags {
		id := TagID(w.typ, t)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, &TagRow{ID: id, Key: t.Key, Value: t.Value, AuthorID: t.AuthorID, Type: w.typ})
		links = append(links, &TagLinkRow{TagID: id, OwnerID: ownerID})
	}

	if _, err := db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert tags of %s: %w", ownerID, err)
	}
	if _, err := db.NewInsert().Model(&links).Exec(ctx); err != nil {
		return fmt.Errorf("link tags of %s: %w", ownerID, err)
	}
	return nil
}

type ownedTag struct {
	OwnerID  string `bun:"owner_id"`
	Key      string `bun:"key"`
	Value    string `bun:"value"`
	AuthorID string `bun:"author_id"`
}

// LoadTags returns the tags of type typ linked to each owner, ordered by key
// then value.
func LoadTags(ctx context.Context, db bun.IDB, typ string, ownerIDs []string) (map[string][]Tag, error) {
	out := make(map[string][]Tag, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	var rows []ownedTag
	err := db.NewSelect().
		TableExpr("? AS ?", bun.Ident(filters.LinkTable), bun.Ident("tg_link")).
		Join("JOIN ? AS ? ON ? = ?", bun.Ident(filters.TagTable), bun.Ident("tg"), bun.Ident("tg.id"), bun.Ident("tg_link.tag_id")).
		ColumnExpr("?, ?, ?, ?", bun.Ident("tg_link.owner_id"), bun.Ident("tg.key"), bun.Ident("tg.value"), bun.Ident("tg.author_id")).
		Where("? = ?", bun.Ident("tg.type"), typ).
		Where("? IN (?)", bun.Ident("tg_link.owner_id"), bun.In(ownerIDs)).
		OrderExpr("?, ?, ?", bun.Ident("tg.key"), bun.Ident("tg.value"), bun.Ident("tg.author_id")).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	for _, row := range rows {
		out[row.OwnerID] = append(out[row.OwnerID], Tag{Key: row.Key, Value: row.Value, AuthorID: row.AuthorID})
	}
	return out, nil
}

type tagPair struct {
	Key   string `bun:"key"`
	Value string `bun:"value"`
}

// tagFacets lists the distinct values per key of the linked tags of typ.
func tagFacets(ctx context.Context, db bun.IDB, typ string) (map[string][]string, error) {
	var pairs []tagPair
	link := db.NewSelect().
		TableExpr("? AS ?", bun.Ident(filters.LinkTable), bun.Ident("tg_link")).
		ColumnExpr("1").
		Where("? = ?", bun.Ident("tg_link.tag_id"), bun.Ident("tg.id"))
	err := db.NewSelect().
		TableExpr("? AS ?", bun.Ident(filters.TagTable), bun.Ident("tg")).
		ColumnExpr("?, ?", bun.Ident("tg.key"), bun.Ident("tg.value")).
		Distinct().
		Where("? = ?", bun.Ident("tg.type"), typ).
		Where("EXISTS (?)", link).
		Scan(ctx, &pairs)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, p := range pairs {
		out[p.Key] = append(out[p.Key], p.Value)
	}
	for key := range out {
		sort.Strings(out[key])
	}
	return out, nil
}
