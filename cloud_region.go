package undot

const unknownCloud = "unknown"

// CloudRegion is the detected cloud provider and region. Both fields are
// "unknown" when nothing is detected.
type CloudRegion struct {
	Provider string
	Region   string
}

// Known reports whether a provider was detected.
func (r CloudRegion) Known() bool {
	return r.Provider != "" && r.Provider != unknownCloud
}

// layerNames returns the per-environment file stems in merge order:
// {env}, {env}.{provider}, {env}.{provider}.{region}.
func (r CloudRegion) layerNames(envName string) []string {
	if envName == "" {
		return nil
	}
	names := []string{envName}
	if !r.Known() {
		return names
	}
	names = append(names, envName+"."+r.Provider)
	if r.Region != "" && r.Region != unknownCloud {
		names = append(names, envName+"."+r.Provider+"."+r.Region)
	}
	return names
}

// cloudVendors lists the vendor region variables in detection order.
var cloudVendors = []struct {
	provider string
	vars     []string
}{
	{"aws", []string{"AWS_REGION", "AWS_DEFAULT_REGION"}},
	{"azure", []string{"AZURE_REGION", "AZURE_LOCATION"}},
	{"gcp", []string{"GOOGLE_CLOUD_REGION", "CLOUDSDK_COMPUTE_REGION"}},
}

// DetectCloudRegion detects the cloud provider and region from the process
// environment.
func DetectCloudRegion() CloudRegion {
	return DetectCloudRegionFromEnv(osEnvMap())
}

// DetectCloudRegionFromEnv detects the cloud provider and region from env.
//
// Detection order:
//  1. UNDOT_CONFIG_CLOUD_PROVIDER / UNDOT_CONFIG_CLOUD_REGION (explicit override)
//  2. AWS_REGION / AWS_DEFAULT_REGION
//  3. AZURE_REGION / AZURE_LOCATION
//  4. GOOGLE_CLOUD_REGION / CLOUDSDK_COMPUTE_REGION
func DetectCloudRegionFromEnv(env map[string]string) CloudRegion {
	provider, region := env["UNDOT_CONFIG_CLOUD_PROVIDER"], env["UNDOT_CONFIG_CLOUD_REGION"]
	if provider != "" || region != "" {
		return CloudRegion{
			Provider: coalesceStr(provider, unknownCloud),
			Region:   coalesceStr(region, unknownCloud),
		}
	}

	for _, vendor := range cloudVendors {
		for _, name := range vendor.vars {
			if r := env[name]; r != "" {
				return CloudRegion{Provider: vendor.provider, Region: r}
			}
		}
	}
	return CloudRegion{Provider: unknownCloud, Region: unknownCloud}
}

// coalesceStr returns the first non-empty string from the arguments.
func coalesceStr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
