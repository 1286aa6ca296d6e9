package cnst

const (
	// GirderYaml is the default configuration file name
	GirderYaml = "girder.yaml"
)

const (
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSingle   = "single"
)
