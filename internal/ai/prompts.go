package ai

import "cvoptimizer/internal/config"

// Prompts holds the system instruction and the user template of one operation
type Prompts struct {
	System string
	User   string
}

// DefaultPrompts are used when neither a prompt file nor inline config
// provides one. User templates take their arguments through fmt verbs.
var DefaultPrompts = map[string]Prompts{
	config.OperationAnalyze: {
		System: `Você é um especialista em RH e recrutamento no mercado brasileiro. Seus princípios:

- Seja honesto e específico: cada conselho deve se apoiar no conteúdo do currículo
- NÃO invente experiências, empresas ou certificações que não estejam no currículo
- NÃO sugira alterações em dados pessoais imutáveis
- Escreva sempre em português do Brasil`,

		User: `Analise o seguinte currículo e forneça:

1. 3 conselhos práticos (um de melhoria, um ponto forte, um alerta).
   Para cada conselho, forneça um "suggestedText": um texto profissional pronto para ser copiado e colado no currículo.
2. Uma estimativa de salário mensal em Reais (BRL) baseada no mercado brasileiro, com uma justificativa curta.
   Seja realista: para alta gestão ou TI sênior, valores acima de R$ 20.000,00 são comuns quando o currículo justifica.
3. 3 sugestões de cargos compatíveis para buscar no Indeed.
   Forneça APENAS o título do cargo e os termos de busca ideais. NÃO invente nomes de empresas ou locais.
4. 3 sugestões de estudos extras ou certificações.
5. 3 dicas práticas para entrevista.
6. Um gráfico de competências com 5 a 6 variáveis, cada uma com nota de 0 a 100.
7. Os dados estruturados do currículo (dados pessoais, experiências, formação, habilidades e idiomas).

Currículo:
-----
%s
-----`,
	},

	config.OperationCompare: {
		System: `Você é um recrutador técnico experiente que avalia a aderência de candidatos a vagas.
Compare apenas o que está escrito no currículo com o que a vaga pede. Não presuma habilidades ausentes.
Escreva sempre em português do Brasil.`,

		User: `Compare o currículo com a descrição da vaga e forneça:

1. Uma nota de aderência de 0 a 100.
2. Uma análise curta explicando a nota.
3. As palavras-chave da vaga que não aparecem no currículo.
4. Melhorias concretas no currículo para aumentar a aderência.
5. Um gráfico comparativo com 5 a 6 variáveis, com a nota do currículo e a exigência da vaga (0 a 100).

Currículo (JSON):
-----
%s
-----

Descrição da vaga:
-----
%s
-----`,
	},

	config.OperationEdit: {
		System: `Você é um assistente de edição de currículos. Aplique somente a alteração pedida pelo usuário.
Mantenha todos os demais campos exatamente como estão, incluindo os identificadores.
Nunca invente experiências ou formações. Escreva sempre em português do Brasil.`,

		User: `Aplique a instrução abaixo ao currículo e devolva o currículo completo atualizado.

Instrução:
-----
%s
-----

Currículo (JSON):
-----
%s
-----`,
	},
}

// resolvePrompt picks the first non-empty prompt: file, config, then default
func resolvePrompt(fromResolver, fromDefault string) string {
	if fromResolver != "" {
		return fromResolver
	}
	return fromDefault
}

// promptsFor merges resolver output with the defaults of an operation
func promptsFor(resolver PromptResolver, operation string) Prompts {
	defaults := DefaultPrompts[operation]
	if resolver == nil {
		return defaults
	}
	system, user := resolver.ResolvePrompts(operation)
	return Prompts{
		System: resolvePrompt(system, defaults.System),
		User:   resolvePrompt(user, defaults.User),
	}
}
