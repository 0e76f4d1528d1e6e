package prompts

const languageRule = `Write every string value in {{if .Language}}{{.Language}}{{else}}the language of the learner's request{{end}}.`

// RegisterAll registers every tree prompt. Build calls it once on first use.
func RegisterAll() {
	RegisterSpec(Spec{
		Name:       PromptClassifyLevel,
		Version:    1,
		SchemaName: "classification_result",
		Schema:     ClassificationResultSchema,
		System: `
You place a learner's request inside a six-level education hierarchy:
program > curriculum > subject > module > lesson > topic.
- program: a long multi-discipline track (e.g. a degree or bootcamp).
- curriculum: an ordered set of subjects toward one competence.
- subject: one body of knowledge (e.g. a library, a language, a field).
- module: a coherent part of a subject.
- lesson: a single study session inside a module.
- topic: one narrow concept inside a lesson.
Pick "none" only when the request is not a learning goal at all.
Avoid "topic" unless the request is clearly that narrow.
` + languageRule + `
Return JSON only.`,
		User: `
Learner request:
{{.UserInput}}

Allowed categories: {{.Categories}}

Output rules:
- goal: one short canonical goal statement.
- content: 1-3 sentences describing what the learner wants to achieve.
- category: exactly one allowed category.`,
		Validators: []Validator{
			RequireNonEmpty("UserInput", func(in Input) string { return in.UserInput }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptSelectExample,
		Version:    1,
		SchemaName: "example_result",
		Schema:     ExampleResultSchema,
		System: `
You pick one representative subject that best illustrates a learning goal,
so that presentation styles can be demonstrated on it.
` + languageRule + `
Return JSON only.`,
		User: `
Goal: {{.Goal}}
Context: {{.Content}}

Output rules:
- subject: the concrete subject name.
- description: 2-4 sentences explaining the subject for a newcomer.`,
		Validators: []Validator{
			RequireNonEmpty("Goal", func(in Input) string { return in.Goal }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptModelStyles,
		Version:    1,
		SchemaName: "style_list_result",
		Schema:     StyleListResultSchema,
		System: `
You design presentation styles for educational writing (tone, structure, narrative device).
Each style must be distinct from the others.
The description explains how the style writes; it must not restate the example.
The example is a substantive passage written in that style about the given subject, never a placeholder.
` + languageRule + `
Return JSON only.`,
		User: `
Subject: {{.ExampleSubject}}
About the subject: {{.ExampleDescription}}

Produce exactly {{.Count}} styles.`,
		Validators: []Validator{
			RequireNonEmpty("ExampleSubject", func(in Input) string { return in.ExampleSubject }),
			RequirePositive("Count", func(in Input) int { return in.Count }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptExtractInsight,
		Version:    1,
		SchemaName: "insight_result",
		Schema:     InsightResultSchema,
		System: `
You analyse a fragment of a technical blog post and describe its narrative style,
not its subject matter.
` + languageRule + `
Return JSON only.`,
		User: `
Fragment:
{{.ChunkText}}

Output rules:
- title: a short name for the narrative style.
- description: how the author explains things (structure, tone, devices).
- example: a short passage from or closely modelled on the fragment that shows the style.`,
		Validators: []Validator{
			RequireNonEmpty("ChunkText", func(in Input) string { return in.ChunkText }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptWebStyles,
		Version:    1,
		SchemaName: "style_list_result",
		Schema:     StyleListResultSchema,
		System: `
You turn narrative-style observations collected from real blog posts into reusable
presentation styles for educational writing.
The description must not restate the example; the example must be substantive.
` + languageRule + `
Return JSON only.`,
		User: `
Goal: {{.Goal}}

Observed styles (JSON):
{{.InsightsJSON}}

Produce exactly {{.Count}} styles.`,
		Validators: []Validator{
			RequireNonEmpty("InsightsJSON", func(in Input) string { return in.InsightsJSON }),
			RequirePositive("Count", func(in Input) int { return in.Count }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptMergeStyles,
		Version:    1,
		SchemaName: "style_list_result",
		Schema:     StyleListResultSchema,
		System: `
You curate a shortlist of presentation styles from candidate lists.
Choose only among the candidates given; keep each chosen style's title unchanged.
Prefer variety and usefulness for the goal.
` + languageRule + `
Return JSON only.`,
		User: `
Goal: {{.Goal}}

Candidates proposed by the model (JSON):
{{.ModelStylesJSON}}

Candidates observed on the web (JSON):
{{.WebStylesJSON}}

Return at most {{.Count}} styles.`,
		Validators: []Validator{
			RequireAnyNonEmpty("at least one candidate list required",
				func(in Input) string { return in.ModelStylesJSON },
				func(in Input) string { return in.WebStylesJSON },
			),
			RequirePositive("Count", func(in Input) int { return in.Count }),
		},
	})

	RegisterSpec(Spec{
		Name:       PromptGenerateChildren,
		Version:    1,
		SchemaName: "child_list_result",
		Schema:     ChildListResultSchema,
		System: `
You expand one node of an education hierarchy into its direct children.
Hierarchy: program > curriculum > subject > module > lesson > topic.
Children must all be at the requested level, cover the parent completely, and not overlap.
order starts at 1 and follows the recommended study sequence.
description stays under 1000 characters.
content is the full explanation for topics and an empty string for every other level.
{{if .StylesJSON}}Write in the presentation styles the learner selected.
{{end}}` + languageRule + `
Return JSON only.`,
		User: `
Goal: {{.Goal}}

Parent {{.ParentLevel}}: {{.ParentTitle}}
{{.ParentDescription}}

Generate the {{.Level}} items of this {{.ParentLevel}}.
{{if .StylesJSON}}
Selected styles (JSON):
{{.StylesJSON}}
{{end}}`,
		Validators: []Validator{
			RequireNonEmpty("Goal", func(in Input) string { return in.Goal }),
			RequireNonEmpty("Level", func(in Input) string { return in.Level }),
			RequireNonEmpty("ParentTitle", func(in Input) string { return in.ParentTitle }),
		},
	})
}
