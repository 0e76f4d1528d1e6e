package prompts

type PromptName string

const (
	PromptClassifyLevel    PromptName = "tree_classify_level"
	PromptSelectExample    PromptName = "tree_select_example"
	PromptModelStyles      PromptName = "tree_model_styles"
	PromptExtractInsight   PromptName = "tree_extract_insight"
	PromptWebStyles        PromptName = "tree_web_styles"
	PromptMergeStyles      PromptName = "tree_merge_styles"
	PromptGenerateChildren PromptName = "tree_generate_children"
)
