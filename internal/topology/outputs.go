package topology

func (b *builder) outputs() {
	b.s.Output(OutputLoadBalancerDNS, "Public DNS name of the load balancer", b.h[LoadBalancer].GetAtt("DNSName"))
	b.s.Output(OutputECRURI, "Image repository the pipeline pushes to", b.imageRepositoryURI())
	b.s.Output(OutputContainer, "Container the pipeline deploys", b.cfg.Service.ContainerName)
}
