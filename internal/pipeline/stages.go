package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/athenus/review-api/internal/search"
)

// defaultMaxPapers bounds collection when the run input does not set a limit.
const defaultMaxPapers = 25

// strategize derives the search plan from the topic.
func (p *ReviewPipeline) strategize(ctx context.Context, st *State, _ *reporter) error {
	prompt := fmt.Sprintf(`You are planning a literature search for an academic review on the topic:

%q

Respond with a JSON object only, no prose, in this shape:
{"queries": ["..."], "inclusion_criteria": ["..."]}

Provide 3 to 5 focused search queries and the criteria a paper must meet to be included.`, st.Topic)

	text, err := p.generator.GenerateText(ctx, prompt)
	if err != nil {
		return fmt.Errorf("strategy generation failed: %w", err)
	}

	var strategy Strategy
	if err := json.Unmarshal(extractJSON(text), &strategy); err != nil {
		return fmt.Errorf("strategy response is not valid JSON: %w", err)
	}
	if len(strategy.Queries) == 0 {
		return fmt.Errorf("strategy response contains no queries")
	}

	st.Strategy = &strategy
	return nil
}

// collect runs every strategy query against the search backend and merges
// the results, deduplicating across queries.
func (p *ReviewPipeline) collect(ctx context.Context, st *State, rep *reporter) error {
	maxPapers := st.MaxPapers
	if maxPapers <= 0 {
		maxPapers = defaultMaxPapers
	}

	queries := st.Strategy.Queries
	perQuery := maxPapers/len(queries) + 1

	seen := make(map[string]bool)
	var papers []search.Paper
	var lastErr error

	for i, query := range queries {
		results, err := p.searcher.SearchPapers(ctx, query, perQuery)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			p.logger.Warn("search query failed", "query", query, "error", err)
			lastErr = err
			continue
		}
		for _, paper := range results {
			key := paperKey(paper)
			if seen[key] {
				continue
			}
			seen[key] = true
			papers = append(papers, paper)
		}
		rep.sectionProgress(ctx, i+1, len(queries))
	}

	if len(papers) == 0 {
		if lastErr != nil {
			return fmt.Errorf("all search queries failed: %w", lastErr)
		}
		return fmt.Errorf("%w: no papers found for any query", search.ErrSearchFailed)
	}

	if len(papers) > maxPapers {
		papers = papers[:maxPapers]
	}
	st.Papers = papers
	return nil
}

// validate filters the collected papers down to the set worth analyzing.
// Papers without a title or without any usable content (abstract, venue, or
// citations) are dropped.
func (p *ReviewPipeline) validate(_ context.Context, st *State, _ *reporter) error {
	if len(st.Papers) == 0 {
		return fmt.Errorf("no papers to validate")
	}

	var kept []search.Paper
	for _, paper := range st.Papers {
		if paper.Title == "" {
			continue
		}
		if paper.Abstract == "" && paper.Venue == "" && paper.CitationCount == 0 {
			continue
		}
		kept = append(kept, paper)
	}

	// An overly strict filter must not starve the rest of the pipeline.
	if len(kept) == 0 {
		kept = st.Papers
	}
	st.ValidatedPapers = kept
	return nil
}

// analyze produces the thematic synthesis of the validated papers that the
// writing stages draw on.
func (p *ReviewPipeline) analyze(ctx context.Context, st *State, _ *reporter) error {
	prompt := fmt.Sprintf(`You are analyzing papers for a literature review on %q.

Papers:
%s

Identify the major themes, methodological approaches, points of agreement and
disagreement, and open gaps across these papers. Write a structured analysis
in plain prose.`, st.Topic, formatPaperList(st.ValidatedPapers))

	text, err := p.generator.GenerateText(ctx, prompt)
	if err != nil {
		return fmt.Errorf("paper analysis failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("paper analysis returned empty text")
	}

	st.Analysis = text
	return nil
}

// outline plans the document structure from the analysis.
func (p *ReviewPipeline) outline(ctx context.Context, st *State, _ *reporter) error {
	prompt := fmt.Sprintf(`You are structuring a literature review on %q.

Analysis of the source papers:
%s

Respond with a JSON object only, no prose, in this shape:
{"title": "...", "sections": [{"heading": "...", "focus": "..."}]}

Plan 4 to 7 sections. The first should introduce the topic and the last should
conclude and identify future directions.`, st.Topic, truncate(st.Analysis, 6000))

	text, err := p.generator.GenerateText(ctx, prompt)
	if err != nil {
		return fmt.Errorf("outline generation failed: %w", err)
	}

	var outline Outline
	if err := json.Unmarshal(extractJSON(text), &outline); err != nil {
		return fmt.Errorf("outline response is not valid JSON: %w", err)
	}
	if len(outline.Sections) == 0 {
		return fmt.Errorf("outline response contains no sections")
	}
	if outline.Title == "" {
		outline.Title = defaultOutline(st.Topic).Title
	}

	st.Outline = &outline
	return nil
}

// write generates every planned section, fanning out across a bounded worker
// group. Results land at their outline index so document order is stable
// regardless of completion order. A single failed section gets placeholder
// content rather than degrading the whole stage; the stage degrades only
// when every section fails.
func (p *ReviewPipeline) write(ctx context.Context, st *State, rep *reporter) error {
	planned := st.Outline.Sections
	sections := make([]Section, len(planned))
	failures := make([]bool, len(planned))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rep.concurrency)

	for i, plan := range planned {
		g.Go(func() error {
			content, err := p.writeSection(gctx, st, plan)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				p.logger.Warn("section writing failed, using placeholder",
					"heading", plan.Heading, "error", err)
				content = placeholderContent(plan)
				failures[i] = true
			}
			sections[i] = Section{Heading: plan.Heading, Content: content}

			// The ledger and card clamps are read-then-write; reports must
			// reach them one at a time, in counter order, or a slow report
			// for an earlier count can land after a later one and regress
			// stored progress. Only reporting is serialized here, not the
			// section generation above.
			mu.Lock()
			done++
			rep.sectionProgress(gctx, done, len(planned))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	if failed == len(planned) {
		return fmt.Errorf("all %d sections failed to generate", len(planned))
	}

	st.Sections = sections
	return nil
}

func (p *ReviewPipeline) writeSection(ctx context.Context, st *State, plan OutlineSection) (string, error) {
	prompt := fmt.Sprintf(`You are writing one section of a literature review on %q.

Section heading: %s
Section focus: %s

Analysis of the source papers:
%s

Source papers:
%s

Write the body of this section in academic prose, citing papers by author and
year. Do not repeat the heading. Do not write other sections.`,
		st.Topic, plan.Heading, plan.Focus,
		truncate(st.Analysis, 4000),
		formatPaperList(st.ValidatedPapers))

	text, err := p.generator.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty section body")
	}
	return text, nil
}

// review produces an editorial assessment of the assembled draft. The
// assessment is attached to the final document; it does not rewrite it.
func (p *ReviewPipeline) review(ctx context.Context, st *State, _ *reporter) error {
	var draft strings.Builder
	for _, section := range st.Sections {
		draft.WriteString("## " + section.Heading + "\n\n")
		draft.WriteString(section.Content + "\n\n")
	}

	prompt := fmt.Sprintf(`You are reviewing a draft literature review on %q for quality.

Draft:
%s

Assess coverage, coherence, and balance in 2-3 short paragraphs. Note any
claims that lack support from the cited papers.`, st.Topic, truncate(draft.String(), 12000))

	text, err := p.generator.GenerateText(ctx, prompt)
	if err != nil {
		return fmt.Errorf("quality review failed: %w", err)
	}

	st.Review = text
	return nil
}

// finalize assembles the complete markdown document.
func (p *ReviewPipeline) finalize(_ context.Context, st *State, _ *reporter) error {
	st.Document = assembleDocument(st)
	if st.Document == "" {
		return fmt.Errorf("assembled document is empty")
	}
	return nil
}

// defaultOutline is the structure used when outline planning fails.
func defaultOutline(topic string) *Outline {
	return &Outline{
		Title: fmt.Sprintf("A Review of the Literature on %s", topic),
		Sections: []OutlineSection{
			{Heading: "Introduction", Focus: "Motivation and scope of the review"},
			{Heading: "Background", Focus: "Key concepts and terminology"},
			{Heading: "Current Research", Focus: "Major findings across the surveyed papers"},
			{Heading: "Discussion", Focus: "Synthesis, limitations, and open questions"},
			{Heading: "Conclusion", Focus: "Summary and future directions"},
		},
	}
}

// placeholderSections fills every planned section with placeholder content.
func placeholderSections(outline *Outline) []Section {
	sections := make([]Section, len(outline.Sections))
	for i, plan := range outline.Sections {
		sections[i] = Section{Heading: plan.Heading, Content: placeholderContent(plan)}
	}
	return sections
}

func placeholderContent(plan OutlineSection) string {
	if plan.Focus != "" {
		return fmt.Sprintf("*This section on %s could not be generated.*", plan.Focus)
	}
	return "*This section could not be generated.*"
}

// assembleDocument renders the final markdown: title, sections, editorial
// notes when present, and the reference list.
func assembleDocument(st *State) string {
	var b strings.Builder

	b.WriteString("# " + documentTitle(st) + "\n\n")
	for _, section := range st.Sections {
		b.WriteString("## " + section.Heading + "\n\n")
		b.WriteString(section.Content + "\n\n")
	}

	if st.Review != "" {
		b.WriteString("## Editorial Notes\n\n")
		b.WriteString(st.Review + "\n\n")
	}

	if len(st.ValidatedPapers) > 0 {
		b.WriteString("## References\n\n")
		for _, paper := range st.ValidatedPapers {
			b.WriteString("- " + formatReference(paper) + "\n")
		}
	}

	return strings.TrimSpace(b.String())
}

func documentTitle(st *State) string {
	if st.Outline != nil && st.Outline.Title != "" {
		return st.Outline.Title
	}
	return defaultOutline(st.Topic).Title
}

func formatReference(paper search.Paper) string {
	var parts []string
	if len(paper.Authors) > 0 {
		parts = append(parts, strings.Join(paper.Authors, ", "))
	}
	if paper.Year > 0 {
		parts = append(parts, fmt.Sprintf("(%d)", paper.Year))
	}
	parts = append(parts, paper.Title)
	if paper.Venue != "" {
		parts = append(parts, paper.Venue)
	}
	ref := strings.Join(parts, ". ")
	if paper.DOI != "" {
		ref += ". https://doi.org/" + paper.DOI
	}
	return ref
}

func formatPaperList(papers []search.Paper) string {
	var b strings.Builder
	for i, paper := range papers {
		fmt.Fprintf(&b, "%d. %s", i+1, paper.Title)
		if len(paper.Authors) > 0 {
			fmt.Fprintf(&b, " — %s", strings.Join(paper.Authors, ", "))
		}
		if paper.Year > 0 {
			fmt.Fprintf(&b, " (%d)", paper.Year)
		}
		b.WriteString("\n")
		if paper.Abstract != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(paper.Abstract, 500))
		}
	}
	return b.String()
}

// paperKey identifies a paper for cross-query deduplication. DOI when
// available, otherwise the lowercased title.
func paperKey(paper search.Paper) string {
	if paper.DOI != "" {
		return "doi:" + strings.ToLower(paper.DOI)
	}
	return "title:" + strings.ToLower(strings.TrimSpace(paper.Title))
}

// extractJSON strips markdown code fences that models wrap JSON responses in.
func extractJSON(text string) json.RawMessage {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return json.RawMessage(trimmed)
}

// truncate cuts s to at most max bytes, backing up to a rune boundary so a
// multi-byte character is never split mid-sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "…"
}
