package op

// Kind identifies the category of a recorded operation. The engine treats
// kinds as opaque equality keys; a kind also selects the applier used to
// move external state forward or backward across that operation.
type Kind string

// Kinds recorded by the writer integration. Callers may define their own;
// the engine only compares kinds and looks them up in the applier registry.
const (
	ChapterEdit     Kind = "chapter_edit"
	ChapterAdd      Kind = "chapter_add"
	ChapterDelete   Kind = "chapter_delete"
	ChapterGenerate Kind = "chapter_generate"
	ChapterMove     Kind = "chapter_move"
	BatchReplace    Kind = "batch_replace"
	VolumeDelete    Kind = "volume_delete"
	VolumeRestore   Kind = "volume_restore"
	ConfigEdit      Kind = "config_edit"
	CharacterEdit   Kind = "character_edit"
	StyleEdit       Kind = "style_edit"
	Reorder         Kind = "reorder"
	TagEdit         Kind = "tag_edit"
	KnowledgeImport Kind = "knowledge_import"
	VectorClear     Kind = "vectorstore_clear"
)
