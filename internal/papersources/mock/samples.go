package mock

import "github.com/helixir/paper-feed-service/internal/domain"

func strPtr(s string) *string { return &s }

// samplePapers returns fresh copies of the fixed sample set so callers can
// mutate results freely.
func samplePapers() []domain.Paper {
	return []domain.Paper{
		{
			ID:            "2601.20802",
			Title:         "Reinforcement Learning via Self-Distillation",
			Authors:       []string{"Jonas Hübotter", "Frederike Lübeck", "Lejs Behric"},
			Summary:       "The paper introduces Self-Distillation Policy Optimization (SDPO), an on-policy reinforcement learning algorithm...",
			PublishedDate: "28 Jan 2026",
			ThumbnailURL:  strPtr("https://paper-assets.alphaxiv.org/image/2601.20802v1.png"),
			Categories:    []string{"agents", "computer-science", "artificial-intelligence"},
			UpvoteCount:   148,
			CommentCount:  8,
		},
		{
			ID:            "2601.22158",
			Title:         "One-step Latent-free Image Generation with Pixel Mean Flows",
			Authors:       []string{"Yiyang Lu", "Susie Lu", "Qiao Sun"},
			Summary:       "Researchers from MIT and CMU introduce Pixel MeanFlow (pMF), a generative model capable of producing high-fidelity images...",
			PublishedDate: "29 Jan 2026",
			ThumbnailURL:  strPtr("https://paper-assets.alphaxiv.org/image/2601.22158v1.png"),
			Categories:    []string{"computer-science", "computer-vision-and-pattern-recognition", "generative-models"},
			UpvoteCount:   44,
			CommentCount:  0,
		},
	}
}

// sampleOverview is served for every id and language.
const sampleOverview = "# Reinforcement Learning via Self-Distillation\n" +
	"\n" +
	"## Introduction\n" +
	"The paper introduces **Self-Distillation Policy Optimization (SDPO)**, an on-policy reinforcement learning algorithm that leverages rich, tokenized environment feedback to improve Large Language Model (LLM) performance.\n" +
	"\n" +
	"### Key Features\n" +
	"* **Self-Distillation**: The model learns from its own explained mistakes.\n" +
	"* **Sample Efficiency**: Significantly enhanced sample efficiency compared to traditional RL.\n" +
	"* **Accuracy**: Higher final accuracy on complex reasoning and coding tasks.\n" +
	"\n" +
	"## Methodology\n" +
	"The authors propose a framework where the model generates multiple responses, critiques them, and then distills the best practices into its policy.\n" +
	"\n" +
	"```python\n" +
	"def sdpo_update(policy, feedback):\n" +
	"    # Simplified representation\n" +
	"    loss = compute_distillation_loss(policy, feedback)\n" +
	"    optimizer.step(loss)\n" +
	"```\n" +
	"\n" +
	"## Results\n" +
	"Experiments on MATH and HumanEval show that SDPO outperforms standard PPO by a large margin."
