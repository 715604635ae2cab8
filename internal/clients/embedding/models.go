package embedding

// Known model names and their default/supported dimensions, carried over
// from the teacher's embedding client model tables and generalized to
// also resolve EMBED_DIM validation at startup (§6: "mismatch is fatal
// at startup").
const (
	ModelBGELargeZhV15      = "BAAI/bge-large-zh-v1.5"
	ModelBGELargeEnV15      = "BAAI/bge-large-en-v1.5"
	ModelBGEM3              = "BAAI/bge-m3"
	ModelBCEEmbeddingBaseV1 = "netease-youdao/bce-embedding-base_v1"
	ModelQwen3Embedding8B   = "Qwen/Qwen3-Embedding-8B"
	ModelQwen3Embedding4B   = "Qwen/Qwen3-Embedding-4B"
	ModelQwen3Embedding06B  = "Qwen/Qwen3-Embedding-0.6B"
	ModelTextEmbedding3Small = "text-embedding-3-small"
	ModelTextEmbedding3Large = "text-embedding-3-large"
)

// GetSupportedDimensions returns the Matryoshka-style dimensions a model
// can be truncated to, or nil if the model has one fixed dimension.
func GetSupportedDimensions(model string) []int {
	switch model {
	case ModelQwen3Embedding8B:
		return []int{64, 128, 256, 512, 768, 1024, 2048, 4096}
	case ModelQwen3Embedding4B:
		return []int{64, 128, 256, 512, 768, 1024, 2048}
	case ModelQwen3Embedding06B:
		return []int{64, 128, 256, 512, 768, 1024}
	case ModelTextEmbedding3Large:
		return []int{256, 1024, 3072}
	case ModelTextEmbedding3Small:
		return []int{512, 1536}
	default:
		return nil
	}
}

// GetDefaultDimensions returns the native output dimension of a model.
func GetDefaultDimensions(model string) int {
	switch model {
	case ModelQwen3Embedding8B:
		return 4096
	case ModelQwen3Embedding4B:
		return 2048
	case ModelQwen3Embedding06B:
		return 1024
	case ModelBGELargeZhV15, ModelBGELargeEnV15:
		return 1024
	case ModelBCEEmbeddingBaseV1:
		return 768
	case ModelBGEM3:
		return 1024
	case ModelTextEmbedding3Large:
		return 3072
	case ModelTextEmbedding3Small:
		return 1536
	default:
		return 1536
	}
}

// DimensionSupported reports whether dim is valid for model, used to
// validate EMBED_DIM against EMBED_MODEL at startup.
func DimensionSupported(model string, dim int) bool {
	supported := GetSupportedDimensions(model)
	if supported == nil {
		return dim == GetDefaultDimensions(model)
	}
	for _, d := range supported {
		if d == dim {
			return true
		}
	}
	return false
}
