package driven

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. None of them carry format placeholders; the
// assembler concatenates them around the retrieved context.
const (
	// PromptSystem is the system message sent with every answer request.
	PromptSystem = "system"

	// PromptPreamble opens the user prompt (role and language rules).
	PromptPreamble = "preamble"

	// PromptInstructions follows the question block (answering rules).
	PromptInstructions = "instructions"

	// PromptComparative is appended for comparative questions.
	PromptComparative = "comparative"

	// PromptUnavailable is the answer returned when the model stays unavailable.
	PromptUnavailable = "unavailable"
)

// DefaultPrompts are the built-in templates, used when no PromptStore is
// configured and written out as the initial content of prompt files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var DefaultPrompts = map[string]string{
	PromptSystem: `Tu es un expert analyste technique.`,

	PromptPreamble: `Tu es un expert en analyse technique des rapports de l’ANP (Agence Nationale des Ports).
Tu dois répondre de façon claire, complète, bien structurée, uniquement en **langue française**.
- N’utilise que les extraits fournis (textes + tableaux), sans rien inventer.
- Les liens PDF apparaissent à la fin uniquement.`,

	PromptInstructions: `**Consignes strictes pour générer ta réponse :**
- Réponds de manière complète, rigoureuse et bien structurée (utilise des paragraphes, titres, listes ou tableaux si nécessaire).
- Ne copie pas la question dans la réponse.
- N’utilise que les extraits fournis (textes + tableaux), sans rien inventer.
- Si aucune information pertinente n’est trouvée, indique-le clairement.
- N’inclus aucun lien ni référence extérieure.
- Utilise un langage professionnel clair, précis, sans ambiguïté.
- La réponse doit comporter un **minimum de 900 mots** si la question le justifie.
- Sépare les différentes parties avec des lignes vides pour la lisibilité.`,

	PromptComparative: `### Instructions supplémentaires pour une question comparative :

- Identifie les **éléments comparables** dans les textes ou tableaux fournis.
- Présente un **tableau comparatif clair** :
   - Lignes = critères de comparaison
   - Colonnes = noms des rapports
- Rédige ensuite une **analyse des différences** : explique chaque point notable.
- Termine par une **synthèse comparative** ou une **recommandation finale**, basée sur l’interprétation des données.
- Utilise un titre comme ## Comparaison suivi de ## Conclusion comparative pour séparer les sections.`,

	PromptUnavailable: `Le service de génération de réponses est temporairement indisponible.`,
}
